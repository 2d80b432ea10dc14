package event

import "time"

// SourceManualSend is the sentinel source address recorded on events that
// were created by an operator-initiated send rather than an inbound request.
const SourceManualSend = "manual_send"

// Event is one captured or manually-sent interaction record.
//
// The ledger assigns ID and ReceivedAt at insert time; both are immutable
// afterwards. IsFavorite and IsDeleted are the only mutable fields.
type Event struct {
	// ID is a monotonically increasing integer assigned by the ledger.
	// Unique for the lifetime of the ledger, never reused.
	ID int64 `json:"id"`

	// SourceAddress is the originating network address, or SourceManualSend
	// for operator-initiated sends. May be empty.
	SourceAddress string `json:"source_address,omitempty"`

	// Method is the HTTP verb or equivalent action label. Never empty.
	Method string `json:"method"`

	// Headers is the captured header mapping, stored verbatim. Values are
	// strings for captured requests and may be nested structures for
	// resolved-URL metadata on manual sends.
	Headers map[string]any `json:"headers,omitempty"`

	// Payload is the captured body, stored verbatim. May be any JSON value
	// including null.
	Payload any `json:"payload"`

	// ReceivedAt is assigned by the ledger at insert time.
	ReceivedAt time.Time `json:"received_at"`

	// IsFavorite marks the event as pinned on the dashboard.
	IsFavorite bool `json:"is_favorite"`

	// IsDeleted hides the event from default listings. Soft delete only;
	// the event remains addressable by ID.
	IsDeleted bool `json:"is_deleted"`
}

// ListOpts configures recency listing.
type ListOpts struct {
	// Limit caps the number of returned events. Zero means the store default.
	Limit int

	// IncludeDeleted includes soft-deleted events in the listing.
	IncludeDeleted bool
}
