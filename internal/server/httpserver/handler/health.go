package handler

import (
	"net/http"
	"time"

	"github.com/yndnr/tallymesh/internal/core/domain"
	"github.com/yndnr/tallymesh/internal/infra/buildinfo"
	"github.com/yndnr/tallymesh/internal/telemetry/logger"
)

// handleHealth handles GET /health.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: buildinfo.Get().Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady handles GET /ready.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status: "ready",
		Time:   time.Now().UTC().Format(time.RFC3339),
	}
	if h.deps.Ready != nil {
		if err := h.deps.Ready(r.Context()); err != nil {
			de := domain.ErrServiceUnavailable.WithCause(err)
			logger.L(r.Context()).Warn("readiness check failed", "error", de)
			resp.Status = "not_ready"
			resp.Error = err.Error()
			w.Header().Set("X-Error-Code", de.Code)
			h.writeJSON(w, StatusForCode(de.Code), resp)
			return
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}
