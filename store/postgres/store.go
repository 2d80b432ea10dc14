package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	nexus "github.com/nexushub/nexus"
	"github.com/nexushub/nexus/auth"
	"github.com/nexushub/nexus/event"
	nexusstore "github.com/nexushub/nexus/store"
)

// compile-time interface check
var _ nexusstore.Store = (*Store)(nil)

const tokenRowID = 1

// Store implements store.Store using Postgres via Grove ORM.
//
// Event IDs come from an in-process counter seeded with the highest
// persisted ID, matching the single-process deployment model. The mutex
// serializes concurrent inserts so assignment stays strictly increasing.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB

	idMu     sync.Mutex
	nextID   int64
	idSeeded bool
}

// New creates a new Postgres store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("nexus/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("nexus/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Event Store ====================

func (s *Store) InsertEvent(ctx context.Context, evt *event.Event) error {
	s.idMu.Lock()
	defer s.idMu.Unlock()

	if !s.idSeeded {
		m := new(eventModel)
		err := s.pg.NewSelect(m).
			OrderExpr("id DESC").
			Limit(1).
			Scan(ctx)
		switch {
		case err == nil:
			s.nextID = m.ID
		case isNoRows(err):
			s.nextID = 0
		default:
			return err
		}
		s.idSeeded = true
	}

	evt.ID = s.nextID + 1
	evt.ReceivedAt = time.Now().UTC()

	if _, err := s.pg.NewInsert(toEventModel(evt)).Exec(ctx); err != nil {
		evt.ID = 0
		evt.ReceivedAt = time.Time{}
		return err
	}
	s.nextID++
	return nil
}

func (s *Store) GetEvent(ctx context.Context, eventID int64) (*event.Event, error) {
	m := new(eventModel)
	err := s.pg.NewSelect(m).
		Where("id = ?", eventID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, nexus.ErrEventNotFound
		}
		return nil, err
	}
	return fromEventModel(m)
}

func (s *Store) ListRecent(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	var models []eventModel
	q := s.pg.NewSelect(&models)

	if !opts.IncludeDeleted {
		q = q.Where("is_deleted = FALSE")
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	q = q.OrderExpr("id DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*event.Event, len(models))
	for i := range models {
		evt, err := fromEventModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = evt
	}
	return result, nil
}

func (s *Store) SetDeleted(ctx context.Context, eventID int64) error {
	res, err := s.pg.NewUpdate((*eventModel)(nil)).
		Set("is_deleted = ?", true).
		Where("id = ?", eventID).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return nexus.ErrEventNotFound
	}
	return nil
}

func (s *Store) ToggleFavorite(ctx context.Context, eventID int64) (bool, error) {
	res, err := s.pg.NewUpdate((*eventModel)(nil)).
		Set("is_favorite = NOT is_favorite").
		Where("id = ?", eventID).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		return false, nexus.ErrEventNotFound
	}

	m := new(eventModel)
	if err := s.pg.NewSelect(m).Where("id = ?", eventID).Scan(ctx); err != nil {
		return false, err
	}
	return m.IsFavorite, nil
}

// ==================== Token Store ====================

func (s *Store) GetToken(ctx context.Context) (string, error) {
	m := new(tokenModel)
	err := s.pg.NewSelect(m).
		Where("id = ?", tokenRowID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return "", auth.ErrNoToken
		}
		return "", err
	}
	return m.Token, nil
}

func (s *Store) SetToken(ctx context.Context, token string) error {
	m := &tokenModel{
		ID:        tokenRowID,
		Token:     token,
		UpdatedAt: time.Now().UTC(),
	}
	_, err := s.pg.NewInsert(m).
		OnConflict("(id) DO UPDATE").
		Set("token = EXCLUDED.token").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
