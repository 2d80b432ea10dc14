// Package api provides the HTTP surface for the Nexus hub: webhook capture,
// the live websocket feed, event history management, relaying, and machine
// token auth.
package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	nexus "github.com/nexushub/nexus"
)

// Handler is the root HTTP handler for the Nexus hub.
type Handler struct {
	hub    *nexus.Hub
	logger *slog.Logger
	mux    *http.ServeMux
}

// NewHandler creates a new HTTP handler around a hub.
func NewHandler(hub *nexus.Hub, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		hub:    hub,
		logger: logger,
		mux:    http.NewServeMux(),
	}

	h.registerRoutes()
	return h
}

func (h *Handler) registerRoutes() {
	// Capture. No method pattern: every verb on /webhook is recorded.
	h.mux.HandleFunc("/webhook", h.captureWebhook)
	h.mux.HandleFunc("/webhook/{rest...}", h.captureWebhook)

	// Dashboard and liveness
	h.mux.HandleFunc("GET /{$}", h.dashboard)
	h.mux.HandleFunc("GET /health", h.health)

	// Live feed
	h.mux.Handle("GET /ws", h.websocketHandler())

	// Event history
	h.mux.HandleFunc("GET /api/history", h.listHistory)
	h.mux.HandleFunc("PATCH /api/events/{id}/favorite", h.toggleFavorite)
	h.mux.HandleFunc("DELETE /api/events/{id}", h.deleteEvent)

	// Relay
	h.mux.HandleFunc("POST /api/events/{id}/replay", h.replayEvent)
	h.mux.HandleFunc("POST /api/send", h.sendRequest)
	h.mux.HandleFunc("GET /api/send", h.sendRequest)

	// Auth. Each endpoint answers both verbs so header-only clients can
	// use plain GETs.
	for path, fn := range map[string]http.HandlerFunc{
		"/api/auth/status": h.authStatus,
		"/api/auth/setup":  h.authSetup,
		"/api/auth/verify": h.authVerify,
		"/api/auth/reset":  h.authReset,
	} {
		h.mux.HandleFunc("GET "+path, fn)
		h.mux.HandleFunc("POST "+path, fn)
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.withMiddleware(h.mux).ServeHTTP(w, r)
}

func (h *Handler) withMiddleware(next http.Handler) http.Handler {
	return h.panicRecovery(h.logging(h.tokenGate(next)))
}

func (h *Handler) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		h.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (h *Handler) panicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error("panic recovered",
					"error", rec,
					"stack", string(debug.Stack()),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.hub.Store().Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack delegates to the underlying writer so wrapped handlers (the
// websocket upgrade in particular) can take over the connection.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("underlying ResponseWriter does not support hijacking")
	}
	return hj.Hijack()
}

// pathID parses the {id} path segment as an event ID.
func pathID(r *http.Request) (int64, bool) {
	n, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// requestToken extracts the machine token from a request. Both the standard
// Authorization bearer form and the X-Nexus-Token header are accepted.
func requestToken(r *http.Request) string {
	if v := r.Header.Get("Authorization"); v != "" {
		if tok, ok := strings.CutPrefix(v, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
	}
	return strings.TrimSpace(r.Header.Get("X-Nexus-Token"))
}

// JSON helpers.

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best effort
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// queryParam returns a query parameter value, or empty string if not present.
func queryParam(r *http.Request, key string) string {
	return r.URL.Query().Get(key)
}

// queryInt returns a query parameter as int or a default value.
func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	var n int
	for _, c := range v {
		if c < '0' || c > '9' {
			return defaultVal
		}
		n = n*10 + int(c-'0')
	}
	return n
}
