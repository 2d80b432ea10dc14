package sqlite

import (
	"encoding/json"
	"time"

	"github.com/xraph/grove"

	"github.com/nexushub/nexus/event"
)

// eventModel is the row representation of a captured event.
type eventModel struct {
	grove.BaseModel `grove:"table:nexus_events"`

	ID            int64     `grove:"id,pk"`
	SourceAddress string    `grove:"source_address"`
	Method        string    `grove:"method"`
	Headers       string    `grove:"headers"`
	Payload       string    `grove:"payload"`
	ReceivedAt    time.Time `grove:"received_at"`
	IsFavorite    bool      `grove:"is_favorite"`
	IsDeleted     bool      `grove:"is_deleted"`
}

// tokenModel is the single-row machine token record.
type tokenModel struct {
	grove.BaseModel `grove:"table:nexus_machine_token"`

	ID        int64     `grove:"id,pk"`
	Token     string    `grove:"token"`
	UpdatedAt time.Time `grove:"updated_at"`
}

func toEventModel(evt *event.Event) *eventModel {
	headers, _ := json.Marshal(evt.Headers) //nolint:errcheck // map[string]any from JSON input
	payload, _ := json.Marshal(evt.Payload) //nolint:errcheck // opaque JSON value

	return &eventModel{
		ID:            evt.ID,
		SourceAddress: evt.SourceAddress,
		Method:        evt.Method,
		Headers:       string(headers),
		Payload:       string(payload),
		ReceivedAt:    evt.ReceivedAt,
		IsFavorite:    evt.IsFavorite,
		IsDeleted:     evt.IsDeleted,
	}
}

func fromEventModel(m *eventModel) (*event.Event, error) {
	var headers map[string]any
	if m.Headers != "" {
		if err := json.Unmarshal([]byte(m.Headers), &headers); err != nil {
			return nil, err
		}
	}

	var payload any
	if m.Payload != "" {
		if err := json.Unmarshal([]byte(m.Payload), &payload); err != nil {
			return nil, err
		}
	}

	return &event.Event{
		ID:            m.ID,
		SourceAddress: m.SourceAddress,
		Method:        m.Method,
		Headers:       headers,
		Payload:       payload,
		ReceivedAt:    m.ReceivedAt,
		IsFavorite:    m.IsFavorite,
		IsDeleted:     m.IsDeleted,
	}, nil
}
