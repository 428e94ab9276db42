// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package api

import (
	"net/http"
	"time"
)

// healthResponse reports database connectivity, job backlog depth per
// topic, and per-provider circuit-breaker state.
type healthResponse struct {
	Status    string           `json:"status"`
	Database  string           `json:"database"`
	Backlog   map[string]int64 `json:"job_backlog"`
	Breakers  map[string]string `json:"circuit_breakers"`
	CheckedAt time.Time        `json:"checked_at"`
}

// Health is GET /healthz. It degrades to 503 only when the database is
// unreachable; an open breaker or deep backlog is reported but still 200,
// since the process is alive and will recover on its own.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Database:  "ok",
		Breakers:  make(map[string]string),
		CheckedAt: time.Now().UTC(),
	}
	status := http.StatusOK

	if err := h.db.Ping(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	} else {
		backlog, err := h.db.PendingJobDepth(r.Context())
		if err == nil {
			resp.Backlog = backlog
		}
	}

	for name, state := range h.breakerStates() {
		resp.Breakers[name] = state
	}

	respondJSON(w, status, resp)
}

func (h *Handler) breakerStates() map[string]string {
	out := make(map[string]string, len(h.breakers))
	for name, b := range h.breakers {
		out[name] = b.BreakerState()
	}
	return out
}
