package api

import (
	"embed"
	"net/http"
)

//go:embed static/index.html
var staticFS embed.FS

// dashboard serves the embedded single-page event viewer.
func (h *Handler) dashboard(w http.ResponseWriter, _ *http.Request) {
	page, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "dashboard unavailable")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(page) //nolint:errcheck // best effort
}
