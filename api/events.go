package api

import (
	"errors"
	"io"
	"net"
	"net/http"

	nexus "github.com/nexushub/nexus"
)

// maxCaptureBody caps inbound webhook bodies at 1 MiB.
const maxCaptureBody = 1 << 20

func (h *Handler) captureWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCaptureBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable request body")
		return
	}

	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}

	evt, err := h.hub.Capture(r.Context(), nexus.Inbound{
		SourceAddress: remoteAddr(r),
		Method:        r.Method,
		Headers:       headers,
		Body:          body,
	})
	if err != nil {
		if errors.Is(err, nexus.ErrBadPayload) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "captured",
		"id":     evt.ID,
	})
}

// remoteAddr returns the peer's host without the ephemeral port.
func remoteAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// historyItem is the dashboard view of one event.
type historyItem struct {
	ID            int64  `json:"id"`
	SourceAddress string `json:"source_address,omitempty"`
	Method        string `json:"method"`
	Payload       any    `json:"payload"`
	Time          string `json:"time"`
	IsFavorite    bool   `json:"is_favorite"`
	IsDeleted     bool   `json:"is_deleted"`
}

func (h *Handler) listHistory(w http.ResponseWriter, r *http.Request) {
	events, err := h.hub.History(r.Context(), queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	items := make([]historyItem, len(events))
	for i, evt := range events {
		items[i] = historyItem{
			ID:            evt.ID,
			SourceAddress: evt.SourceAddress,
			Method:        evt.Method,
			Payload:       evt.Payload,
			Time:          evt.ReceivedAt.Format("15:04:05"),
			IsFavorite:    evt.IsFavorite,
			IsDeleted:     evt.IsDeleted,
		}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) toggleFavorite(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid event ID")
		return
	}

	favorite, err := h.hub.ToggleFavorite(r.Context(), eventID)
	if err != nil {
		if errors.Is(err, nexus.ErrEventNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "updated",
		"event_id":    eventID,
		"is_favorite": favorite,
	})
}

func (h *Handler) deleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid event ID")
		return
	}

	if err := h.hub.Delete(r.Context(), eventID); err != nil {
		if errors.Is(err, nexus.ErrEventNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "deleted",
		"event_id": eventID,
	})
}
