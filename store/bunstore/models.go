package bunstore

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"

	"github.com/nexushub/nexus/event"
)

// eventModel is the row representation of a captured event.
type eventModel struct {
	bun.BaseModel `bun:"table:nexus_events,alias:e"`

	ID            int64     `bun:"id,pk,autoincrement"`
	SourceAddress string    `bun:"source_address,notnull,default:''"`
	Method        string    `bun:"method,notnull,default:''"`
	Headers       string    `bun:"headers,notnull,default:'{}'"`
	Payload       string    `bun:"payload"`
	ReceivedAt    time.Time `bun:"received_at,notnull"`
	IsFavorite    bool      `bun:"is_favorite,notnull,default:false"`
	IsDeleted     bool      `bun:"is_deleted,notnull,default:false"`
}

// tokenModel is the single-row machine token record.
type tokenModel struct {
	bun.BaseModel `bun:"table:nexus_machine_token,alias:t"`

	ID        int64     `bun:"id,pk"`
	Token     string    `bun:"token,notnull,default:''"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
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
