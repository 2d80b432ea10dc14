package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	nexus "github.com/nexushub/nexus"
	"github.com/nexushub/nexus/relayer"
)

func (h *Handler) replayEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid event ID")
		return
	}

	target := queryParam(r, "target_url")
	if target == "" {
		writeError(w, http.StatusBadRequest, "target_url is required")
		return
	}

	evt, err := h.hub.GetEvent(r.Context(), eventID)
	if err != nil {
		if errors.Is(err, nexus.ErrEventNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	result, err := h.hub.Relayer().Replay(r.Context(), evt, target)
	if err != nil {
		if errors.Is(err, relayer.ErrMissingTarget) {
			writeError(w, http.StatusBadRequest, "target_url is required")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type sendRequestBody struct {
	URL     string          `json:"url"`
	Method  string          `json:"method,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (h *Handler) sendRequest(w http.ResponseWriter, r *http.Request) {
	// Inputs arrive via query parameters, a JSON body, or both. Body
	// fields win where both are present.
	in := relayer.SendInput{
		TargetURL: queryParam(r, "url"),
		Method:    queryParam(r, "method"),
	}
	if raw := queryParam(r, "payload"); raw != "" {
		var payload any
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			writeError(w, http.StatusBadRequest, "payload must be valid JSON")
			return
		}
		in.Payload = payload
	}

	if r.Method != http.MethodGet {
		var req sendRequestBody
		switch err := decodeJSON(r, &req); {
		case err == nil:
			if req.URL != "" {
				in.TargetURL = req.URL
			}
			if req.Method != "" {
				in.Method = req.Method
			}
			if len(req.Payload) > 0 {
				var payload any
				if err := json.Unmarshal(req.Payload, &payload); err != nil {
					writeError(w, http.StatusBadRequest, "payload must be valid JSON")
					return
				}
				in.Payload = payload
			}
		case errors.Is(err, io.EOF):
			// No body; query parameters carry the input.
		default:
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if r.Method == http.MethodGet && in.Method == "" {
		in.Method = http.MethodGet
	}

	if in.TargetURL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	result, err := h.hub.Relayer().Send(r.Context(), in)
	if err != nil {
		if errors.Is(err, relayer.ErrMissingTarget) {
			writeError(w, http.StatusBadRequest, "url is required")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}
