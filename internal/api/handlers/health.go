package handlers

import (
	"net/http"
)

// HealthHandler reports liveness and the number of connected map sessions.
type HealthHandler struct {
	ActiveSessions func() int
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	res := map[string]any{"status": "ok"}
	if h.ActiveSessions != nil {
		res["sessions"] = h.ActiveSessions()
	}
	writeJSON(w, r, http.StatusOK, res)
}
