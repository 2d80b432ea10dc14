// Package redis provides a store.Store backed by Redis via Grove KV.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/grove/kv"
	"github.com/xraph/grove/kv/drivers/redisdriver"

	nexus "github.com/nexushub/nexus"
	"github.com/nexushub/nexus/auth"
	"github.com/nexushub/nexus/event"
	nexusstore "github.com/nexushub/nexus/store"
)

// compile-time interface check
var _ nexusstore.Store = (*Store)(nil)

// Store implements store.Store using Redis via Grove KV. Event IDs are
// allocated with INCR, which keeps them strictly increasing across every
// process sharing the instance.
type Store struct {
	kv  *kv.Store
	rdb goredis.UniversalClient
}

// New creates a new Redis store backed by Grove KV.
func New(store *kv.Store) *Store {
	return &Store{
		kv:  store,
		rdb: redisdriver.UnwrapClient(store),
	}
}

// Migrate is a no-op for Redis (no schema migrations needed).
func (s *Store) Migrate(_ context.Context) error {
	return nil
}

// Ping checks Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.kv.Ping(ctx)
}

// Close closes the KV store.
func (s *Store) Close() error {
	return s.kv.Close()
}

// isNotFound checks if an error is a KV not-found sentinel.
func isNotFound(err error) bool {
	return errors.Is(err, kv.ErrNotFound) || errors.Is(err, goredis.Nil)
}

// getEntity retrieves and decodes a JSON entity from a KV key.
func (s *Store) getEntity(ctx context.Context, key string, dest any) error {
	raw, err := s.kv.GetRaw(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// setEntity encodes and stores a JSON entity under a KV key.
func (s *Store) setEntity(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("nexus/redis: marshal entity: %w", err)
	}
	return s.kv.SetRaw(ctx, key, raw)
}

// eventModel is the JSON representation stored in Redis.
type eventModel struct {
	ID            int64          `json:"id"`
	SourceAddress string         `json:"source_address"`
	Method        string         `json:"method"`
	Headers       map[string]any `json:"headers,omitempty"`
	Payload       any            `json:"payload,omitempty"`
	ReceivedAt    time.Time      `json:"received_at"`
	IsFavorite    bool           `json:"is_favorite"`
	IsDeleted     bool           `json:"is_deleted"`
}

func toEventModel(evt *event.Event) *eventModel {
	return &eventModel{
		ID:            evt.ID,
		SourceAddress: evt.SourceAddress,
		Method:        evt.Method,
		Headers:       evt.Headers,
		Payload:       evt.Payload,
		ReceivedAt:    evt.ReceivedAt,
		IsFavorite:    evt.IsFavorite,
		IsDeleted:     evt.IsDeleted,
	}
}

func fromEventModel(m *eventModel) *event.Event {
	return &event.Event{
		ID:            m.ID,
		SourceAddress: m.SourceAddress,
		Method:        m.Method,
		Headers:       m.Headers,
		Payload:       m.Payload,
		ReceivedAt:    m.ReceivedAt,
		IsFavorite:    m.IsFavorite,
		IsDeleted:     m.IsDeleted,
	}
}

func eventIDKey(eventID int64) string {
	return entityKey(prefixEvent, strconv.FormatInt(eventID, 10))
}

// ==================== Event Store ====================

func (s *Store) InsertEvent(ctx context.Context, evt *event.Event) error {
	seq, err := s.rdb.Incr(ctx, keyEventSeq).Result()
	if err != nil {
		return fmt.Errorf("nexus/redis: allocate event ID: %w", err)
	}

	evt.ID = seq
	evt.ReceivedAt = time.Now().UTC()

	m := toEventModel(evt)
	if err := s.setEntity(ctx, eventIDKey(seq), m); err != nil {
		evt.ID = 0
		evt.ReceivedAt = time.Time{}
		return fmt.Errorf("nexus/redis: insert event: %w", err)
	}

	member := goredis.Z{Score: float64(seq), Member: strconv.FormatInt(seq, 10)}
	if err := s.rdb.ZAdd(ctx, zEventAll, member).Err(); err != nil {
		return fmt.Errorf("nexus/redis: index event: %w", err)
	}
	if err := s.rdb.ZAdd(ctx, zEventLive, member).Err(); err != nil {
		return fmt.Errorf("nexus/redis: index event: %w", err)
	}
	return nil
}

func (s *Store) GetEvent(ctx context.Context, eventID int64) (*event.Event, error) {
	m := new(eventModel)
	if err := s.getEntity(ctx, eventIDKey(eventID), m); err != nil {
		if isNotFound(err) {
			return nil, nexus.ErrEventNotFound
		}
		return nil, fmt.Errorf("nexus/redis: get event: %w", err)
	}
	return fromEventModel(m), nil
}

func (s *Store) ListRecent(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	indexKey := zEventLive
	if opts.IncludeDeleted {
		indexKey = zEventAll
	}

	stop := int64(-1)
	if opts.Limit > 0 {
		stop = int64(opts.Limit) - 1
	}
	ids, err := s.rdb.ZRevRange(ctx, indexKey, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("nexus/redis: list events: %w", err)
	}

	result := make([]*event.Event, 0, len(ids))
	for _, rawID := range ids {
		m := new(eventModel)
		if err := s.getEntity(ctx, entityKey(prefixEvent, rawID), m); err != nil {
			if isNotFound(err) {
				continue // index entry outlived the entity
			}
			return nil, fmt.Errorf("nexus/redis: list events: %w", err)
		}
		result = append(result, fromEventModel(m))
	}
	return result, nil
}

func (s *Store) SetDeleted(ctx context.Context, eventID int64) error {
	m := new(eventModel)
	if err := s.getEntity(ctx, eventIDKey(eventID), m); err != nil {
		if isNotFound(err) {
			return nexus.ErrEventNotFound
		}
		return fmt.Errorf("nexus/redis: delete event: %w", err)
	}

	m.IsDeleted = true
	if err := s.setEntity(ctx, eventIDKey(eventID), m); err != nil {
		return fmt.Errorf("nexus/redis: delete event: %w", err)
	}
	if err := s.rdb.ZRem(ctx, zEventLive, strconv.FormatInt(eventID, 10)).Err(); err != nil {
		return fmt.Errorf("nexus/redis: delete event: %w", err)
	}
	return nil
}

func (s *Store) ToggleFavorite(ctx context.Context, eventID int64) (bool, error) {
	m := new(eventModel)
	if err := s.getEntity(ctx, eventIDKey(eventID), m); err != nil {
		if isNotFound(err) {
			return false, nexus.ErrEventNotFound
		}
		return false, fmt.Errorf("nexus/redis: toggle favorite: %w", err)
	}

	m.IsFavorite = !m.IsFavorite
	if err := s.setEntity(ctx, eventIDKey(eventID), m); err != nil {
		return false, fmt.Errorf("nexus/redis: toggle favorite: %w", err)
	}
	return m.IsFavorite, nil
}

// ==================== Token Store ====================

func (s *Store) GetToken(ctx context.Context) (string, error) {
	raw, err := s.kv.GetRaw(ctx, keyToken)
	if err != nil {
		if isNotFound(err) {
			return "", auth.ErrNoToken
		}
		return "", fmt.Errorf("nexus/redis: get token: %w", err)
	}
	return string(raw), nil
}

func (s *Store) SetToken(ctx context.Context, token string) error {
	if err := s.kv.SetRaw(ctx, keyToken, []byte(token)); err != nil {
		return fmt.Errorf("nexus/redis: set token: %w", err)
	}
	return nil
}
