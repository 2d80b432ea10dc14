// Package memory provides an in-memory Store implementation for unit
// testing and examples. Nothing survives process exit.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	nexus "github.com/nexushub/nexus"
	"github.com/nexushub/nexus/auth"
	"github.com/nexushub/nexus/event"
	nexusstore "github.com/nexushub/nexus/store"
)

// compile-time interface check.
var _ nexusstore.Store = (*Store)(nil)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu sync.RWMutex

	events   map[int64]*event.Event
	nextID   int64
	token    string
	hasToken bool
	closed   bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		events: make(map[int64]*event.Event),
	}
}

// Migrate is a no-op for the in-memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping reports whether the store is still open.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nexus.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// event.Store
// ──────────────────────────────────────────────────

// InsertEvent assigns the next ID and the insert timestamp, then stores a
// copy of the event. IDs are strictly increasing in commit order.
func (s *Store) InsertEvent(_ context.Context, evt *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nexus.ErrStoreClosed
	}

	s.nextID++
	evt.ID = s.nextID
	evt.ReceivedAt = time.Now().UTC()

	stored := *evt
	s.events[evt.ID] = &stored
	return nil
}

// GetEvent returns a copy of an event by ID, deleted or not.
func (s *Store) GetEvent(_ context.Context, eventID int64) (*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	evt, ok := s.events[eventID]
	if !ok {
		return nil, nexus.ErrEventNotFound
	}
	copied := *evt
	return &copied, nil
}

// ListRecent returns the most recent events, newest first.
func (s *Store) ListRecent(_ context.Context, opts event.ListOpts) ([]*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*event.Event, 0, len(s.events))
	for _, evt := range s.events {
		if evt.IsDeleted && !opts.IncludeDeleted {
			continue
		}
		copied := *evt
		result = append(result, &copied)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID > result[j].ID
	})

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, nil
}

// SetDeleted soft-deletes an event.
func (s *Store) SetDeleted(_ context.Context, eventID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	evt, ok := s.events[eventID]
	if !ok {
		return nexus.ErrEventNotFound
	}
	evt.IsDeleted = true
	return nil
}

// ToggleFavorite flips the favorite flag and returns the new value.
func (s *Store) ToggleFavorite(_ context.Context, eventID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	evt, ok := s.events[eventID]
	if !ok {
		return false, nexus.ErrEventNotFound
	}
	evt.IsFavorite = !evt.IsFavorite
	return evt.IsFavorite, nil
}

// ──────────────────────────────────────────────────
// auth.TokenStore
// ──────────────────────────────────────────────────

// GetToken returns the stored machine token.
func (s *Store) GetToken(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.hasToken {
		return "", auth.ErrNoToken
	}
	return s.token, nil
}

// SetToken persists the machine token.
func (s *Store) SetToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	s.hasToken = true
	return nil
}
