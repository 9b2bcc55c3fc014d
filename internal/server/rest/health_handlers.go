package rest

import (
	"net/http"
	"time"
)

type liveResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// healthz reports dependency health: 200 when every check passes, 503 otherwise.
func (h *Handlers) healthz(w http.ResponseWriter, r *http.Request) {
	report := h.health.Check(r.Context())
	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func (h *Handlers) live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, liveResponse{Status: "ok", Timestamp: time.Now().UTC()})
}
