package event

import "context"

// Store defines the ledger contract for captured events.
//
// The ledger is the sole source of truth for event data. Implementations
// must serialize concurrent inserts so that ID assignment is strictly
// increasing and each insert is atomic.
type Store interface {
	// InsertEvent persists a new event and assigns its ID and ReceivedAt.
	// Must be durable before returning.
	InsertEvent(ctx context.Context, evt *Event) error

	// GetEvent returns an event by ID, deleted or not.
	GetEvent(ctx context.Context, eventID int64) (*Event, error)

	// ListRecent returns the most recent events, newest first. Soft-deleted
	// events are excluded unless opts.IncludeDeleted is set.
	ListRecent(ctx context.Context, opts ListOpts) ([]*Event, error)

	// SetDeleted soft-deletes an event. The event stays addressable by ID.
	SetDeleted(ctx context.Context, eventID int64) error

	// ToggleFavorite flips the favorite flag and returns the new value.
	ToggleFavorite(ctx context.Context, eventID int64) (bool, error)
}
