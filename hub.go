package nexus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nexushub/nexus/auth"
	"github.com/nexushub/nexus/broadcast"
	"github.com/nexushub/nexus/event"
	"github.com/nexushub/nexus/relayer"
	"github.com/nexushub/nexus/schema"
	"github.com/nexushub/nexus/store"
)

// wireServices initializes the internal services after options have been applied.
func (h *Hub) wireServices() {
	h.broadcaster = broadcast.NewHub(broadcast.Config{
		Buffer:  h.config.ObserverBuffer,
		Metrics: h.metrics,
	}, h.logger)

	h.relaySvc = relayer.NewForwarder(h.store, relayer.Config{
		Timeout:   h.config.RelayTimeout,
		HostAlias: h.config.HostAlias,
		Metrics:   h.metrics,
		Tracer:    h.tracer,
	}, h.logger)

	h.authGate = auth.NewGate(h.store, h.logger)

	if h.captureSchema != nil {
		h.guard = schema.NewGuard()
	}
}

// Inbound is a normalized view of one inbound request presented for capture.
type Inbound struct {
	// SourceAddress is the peer's network address.
	SourceAddress string

	// Method is the HTTP verb of the request. Required.
	Method string

	// Headers is the request header mapping, one value per key.
	Headers map[string]string

	// Body is the raw request body. Must parse as JSON.
	Body []byte
}

// notification is the view of an event pushed to live observers.
type notification struct {
	ID         int64  `json:"id"`
	Method     string `json:"method"`
	Payload    any    `json:"payload"`
	Time       string `json:"time"`
	IsFavorite bool   `json:"is_favorite"`
	IsDeleted  bool   `json:"is_deleted"`
}

// Capture validates and persists an inbound request as an event, then
// notifies live observers.
//
// The critical path:
//  1. Parse the body as structured data (reject unparseable input).
//  2. Validate against the capture schema, if one is configured.
//  3. Persist via the ledger, which assigns ID and ReceivedAt. A failed
//     insert is never broadcast.
//  4. Hand the notification view to the broadcast hub. Fan-out is
//     best-effort and does not affect the returned result.
func (h *Hub) Capture(ctx context.Context, in Inbound) (*event.Event, error) {
	if in.Method == "" {
		return nil, fmt.Errorf("%w: method is required", ErrBadPayload)
	}

	var payload any
	if err := json.Unmarshal(in.Body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadPayload, err.Error())
	}

	if h.guard != nil {
		if err := h.guard.Check(h.captureSchema, payload); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrBadPayload, err.Error())
		}
	}

	headers := make(map[string]any, len(in.Headers))
	for k, v := range in.Headers {
		headers[k] = v
	}

	evt := &event.Event{
		SourceAddress: in.SourceAddress,
		Method:        in.Method,
		Headers:       headers,
		Payload:       payload,
	}

	if err := h.store.InsertEvent(ctx, evt); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrStorageUnavailable, err.Error())
	}

	if h.metrics != nil {
		h.metrics.EventsCapturedTotal.Inc()
	}

	h.notify(evt)

	h.logger.DebugContext(ctx, "event captured",
		"event_id", evt.ID,
		"method", evt.Method,
		"source", evt.SourceAddress,
	)

	return evt, nil
}

// notify serializes the observer view of an event and hands it to the
// broadcast hub. Persistence has already succeeded by the time this runs.
func (h *Hub) notify(evt *event.Event) {
	msg, err := json.Marshal(notification{
		ID:         evt.ID,
		Method:     evt.Method,
		Payload:    evt.Payload,
		Time:       evt.ReceivedAt.Format("15:04:05"),
		IsFavorite: evt.IsFavorite,
		IsDeleted:  evt.IsDeleted,
	})
	if err != nil {
		h.logger.Error("marshal notification", "event_id", evt.ID, "error", err)
		return
	}
	h.broadcaster.Broadcast(msg)
}

// History returns the most recent non-deleted events, newest first.
func (h *Hub) History(ctx context.Context, limit int) ([]*event.Event, error) {
	if limit <= 0 {
		limit = h.config.HistoryLimit
	}
	events, err := h.store.ListRecent(ctx, event.ListOpts{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrStorageUnavailable, err.Error())
	}
	return events, nil
}

// ToggleFavorite flips the favorite flag on an event.
func (h *Hub) ToggleFavorite(ctx context.Context, eventID int64) (bool, error) {
	return h.store.ToggleFavorite(ctx, eventID)
}

// Delete soft-deletes an event. The event disappears from history but
// remains addressable by ID, including for replay.
func (h *Hub) Delete(ctx context.Context, eventID int64) error {
	return h.store.SetDeleted(ctx, eventID)
}

// GetEvent returns an event by ID, deleted or not.
func (h *Hub) GetEvent(ctx context.Context, eventID int64) (*event.Event, error) {
	return h.store.GetEvent(ctx, eventID)
}

// Broadcast returns the observer connection registry.
func (h *Hub) Broadcast() *broadcast.Hub {
	return h.broadcaster
}

// Relayer returns the outbound relay service.
func (h *Hub) Relayer() *relayer.Forwarder {
	return h.relaySvc
}

// Auth returns the machine token gate.
func (h *Hub) Auth() *auth.Gate {
	return h.authGate
}

// Store returns the underlying store.
func (h *Hub) Store() store.Store {
	return h.store
}
