package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/nexushub/nexus/auth"
)

// tokenGate protects /api/* once a machine token is configured. The auth
// endpoints stay open so clients can bootstrap and rotate; capture, the
// dashboard, and the live feed are always open.
func (h *Handler) tokenGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if !strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/api/auth/") {
			next.ServeHTTP(w, r)
			return
		}

		err := h.hub.Auth().Verify(r.Context(), requestToken(r))
		switch {
		case err == nil, errors.Is(err, auth.ErrNotConfigured):
			next.ServeHTTP(w, r)
		case errors.Is(err, auth.ErrUnauthorized):
			writeError(w, http.StatusUnauthorized, "invalid or missing token")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
	})
}

func (h *Handler) authStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.hub.Auth().Status(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) authSetup(w http.ResponseWriter, r *http.Request) {
	token, err := h.hub.Auth().Setup(r.Context())
	if err != nil {
		if errors.Is(err, auth.ErrAlreadyConfigured) {
			writeError(w, http.StatusConflict, "already configured")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

type verifyRequest struct {
	Token string `json:"token"`
}

func (h *Handler) authVerify(w http.ResponseWriter, r *http.Request) {
	token := requestToken(r)
	if token == "" {
		var req verifyRequest
		if err := decodeJSON(r, &req); err == nil {
			token = req.Token
		}
	}

	err := h.hub.Auth().Verify(r.Context(), token)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
	case errors.Is(err, auth.ErrNotConfigured):
		writeError(w, http.StatusBadRequest, "not configured")
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "invalid token")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) authReset(w http.ResponseWriter, r *http.Request) {
	token, err := h.hub.Auth().Reset(r.Context(), requestToken(r))
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, "invalid or missing token")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}
