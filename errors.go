package nexus

import "errors"

// Sentinel errors returned by Hub operations.
var (
	// ErrNoStore is returned when a Hub is created without a store.
	ErrNoStore = errors.New("nexus: store is required")

	// ErrBadPayload is returned when an inbound body cannot be parsed as
	// structured data, or fails the configured capture schema.
	ErrBadPayload = errors.New("nexus: bad payload")

	// ErrEventNotFound is returned when an event cannot be found by ID.
	ErrEventNotFound = errors.New("nexus: event not found")

	// ErrStorageUnavailable is returned when a ledger read or write fails.
	ErrStorageUnavailable = errors.New("nexus: storage unavailable")

	// ErrStoreClosed is returned when a store operation is attempted after
	// the store is closed.
	ErrStoreClosed = errors.New("nexus: store is closed")
)
