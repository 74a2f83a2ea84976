package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/yndnr/tallymesh/internal/core/actor"
	"github.com/yndnr/tallymesh/internal/core/domain"
	"github.com/yndnr/tallymesh/internal/telemetry/logger"
)

// maxBodyBytes bounds the increment and decrement bodies.
const maxBodyBytes = 4 << 10

// counterName returns the counter addressed by the route.
func counterName(r *http.Request) string {
	if name := r.PathValue("name"); name != "" {
		return name
	}
	return domain.GlobalCounterName
}

// handleGetCounter handles GET /api/counter/ and /api/counters/{name}/.
func (h *Handler) handleGetCounter(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.Counters.Get(r.Context(), counterName(r))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, st)
}

// handleIncrement handles POST .../increment.
func (h *Handler) handleIncrement(w http.ResponseWriter, r *http.Request) {
	amount, err := readAmount(w, r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	st, err := h.deps.Counters.Increment(r.Context(), counterName(r), amount, h.updater(r))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, st)
}

// handleDecrement handles POST .../decrement.
func (h *Handler) handleDecrement(w http.ResponseWriter, r *http.Request) {
	amount, err := readAmount(w, r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	st, err := h.deps.Counters.Decrement(r.Context(), counterName(r), amount, h.updater(r))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, st)
}

// handleCounterSocket upgrades onto the counter's socket group.
func (h *Handler) handleCounterSocket(w http.ResponseWriter, r *http.Request) {
	name := counterName(r)
	if err := domain.ValidateCounterName(name); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	tags := []string{domain.TopicCounterUpdates}
	if _, err := h.deps.Acceptor.Accept(w, r, name, actor.KindCounter, tags, h.deps.CounterEvents); err != nil {
		logger.L(r.Context()).Debug("counter socket rejected", "name", name, "error", err)
	}
}

func (h *Handler) updater(r *http.Request) string {
	return h.deps.Identity.Identify(r).Label()
}

// readAmount decodes the optional amount. An empty body selects the
// default amount.
func readAmount(w http.ResponseWriter, r *http.Request) (int64, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return 0, domain.ErrBadRequest.WithDetails("body too large")
		}
		return 0, domain.ErrBadRequest.WithCause(err)
	}
	if strings.TrimSpace(string(body)) == "" {
		return domain.DefaultAmount, nil
	}

	var req AmountRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return 0, domain.ErrBadRequest.WithDetails("body must be a JSON object").WithCause(err)
	}
	return domain.ParseAmount(req.Amount)
}
