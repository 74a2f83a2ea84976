package handler

import (
	"net/http"

	"github.com/yndnr/tallymesh/internal/core/actor"
	"github.com/yndnr/tallymesh/internal/core/domain"
	"github.com/yndnr/tallymesh/internal/telemetry/logger"
)

// handleGetPresence handles GET /api/connection-counter/.
func (h *Handler) handleGetPresence(w http.ResponseWriter, r *http.Request) {
	n, err := h.deps.Presence.Count(r.Context(), domain.GlobalPresenceName)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

// handlePresenceSocket handles GET /api/connection-counter/websocket.
// The presence actor tags the socket itself on open.
func (h *Handler) handlePresenceSocket(w http.ResponseWriter, r *http.Request) {
	_, err := h.deps.Acceptor.Accept(w, r, domain.GlobalPresenceName, actor.KindPresence, nil, h.deps.PresenceEvents)
	if err != nil {
		logger.L(r.Context()).Debug("presence socket rejected", "error", err)
	}
}
