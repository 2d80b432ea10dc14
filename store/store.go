// Package store defines the composite Store interface for hub persistence.
//
// Each subsystem defines its own contract — event.Store for the ledger,
// auth.TokenStore for the machine token — and the aggregate Store composes
// them. Both must survive process restart.
package store

import (
	"context"

	"github.com/nexushub/nexus/auth"
	"github.com/nexushub/nexus/event"
)

// Store is the aggregate persistence interface.
type Store interface {
	event.Store
	auth.TokenStore

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
