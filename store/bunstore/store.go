// Package bunstore provides a store.Store backed by the Bun ORM. With the
// sqlite dialect it is the daemon's default persistence.
package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	nexus "github.com/nexushub/nexus"
	"github.com/nexushub/nexus/auth"
	"github.com/nexushub/nexus/event"
	nexusstore "github.com/nexushub/nexus/store"
)

// compile-time interface check
var _ nexusstore.Store = (*Store)(nil)

const tokenRowID = 1

// Store implements store.Store using the Bun ORM. Event IDs come from the
// table's autoincrement primary key, so assignment is strictly increasing
// and serialized by the database.
type Store struct {
	db *bun.DB
}

// New creates a new Bun-backed store.
func New(db *bun.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying Bun database for direct access.
func (s *Store) DB() *bun.DB { return s.db }

// Migrate creates the required tables using Bun's CreateTable.
func (s *Store) Migrate(ctx context.Context) error {
	models := []any{
		(*eventModel)(nil),
		(*tokenModel)(nil),
	}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_nexus_events_received ON nexus_events (received_at)",
		"CREATE INDEX IF NOT EXISTS idx_nexus_events_deleted ON nexus_events (is_deleted)",
	}
	for _, ddl := range indexes {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return err
		}
	}

	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Event Store ====================

func (s *Store) InsertEvent(ctx context.Context, evt *event.Event) error {
	evt.ReceivedAt = time.Now().UTC()

	m := toEventModel(evt)
	m.ID = 0 // assigned by the database
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		evt.ReceivedAt = time.Time{}
		return err
	}
	evt.ID = m.ID
	return nil
}

func (s *Store) GetEvent(ctx context.Context, eventID int64) (*event.Event, error) {
	m := new(eventModel)
	err := s.db.NewSelect().
		Model(m).
		Where("id = ?", eventID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nexus.ErrEventNotFound
		}
		return nil, err
	}
	return fromEventModel(m)
}

func (s *Store) ListRecent(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	var models []eventModel
	q := s.db.NewSelect().Model(&models)

	if !opts.IncludeDeleted {
		q = q.Where("is_deleted = ?", false)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	q = q.Order("id DESC")

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
	res, err := s.db.NewUpdate().
		Model((*eventModel)(nil)).
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
	res, err := s.db.NewUpdate().
		Model((*eventModel)(nil)).
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
	if err := s.db.NewSelect().
		Model(m).
		Where("id = ?", eventID).
		Limit(1).
		Scan(ctx); err != nil {
		return false, err
	}
	return m.IsFavorite, nil
}

// ==================== Token Store ====================

func (s *Store) GetToken(ctx context.Context) (string, error) {
	m := new(tokenModel)
	err := s.db.NewSelect().
		Model(m).
		Where("id = ?", tokenRowID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
	_, err := s.db.NewInsert().
		Model(m).
		On("CONFLICT (id) DO UPDATE").
		Set("token = EXCLUDED.token").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}
