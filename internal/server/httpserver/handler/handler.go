package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/yndnr/tallymesh/internal/core/domain"
	"github.com/yndnr/tallymesh/internal/telemetry/logger"
	"github.com/yndnr/tallymesh/internal/transport"
)

// CounterService is the counter API the handlers call.
type CounterService interface {
	Get(ctx context.Context, name string) (domain.CounterState, error)
	Increment(ctx context.Context, name string, amount int64, updater string) (domain.CounterState, error)
	Decrement(ctx context.Context, name string, amount int64, updater string) (domain.CounterState, error)
}

// PresenceService is the presence API the handlers call.
type PresenceService interface {
	Count(ctx context.Context, name string) (int, error)
}

// Deps are the collaborators of Handler.
type Deps struct {
	Counters CounterService
	Presence PresenceService

	// Acceptor upgrades socket routes. CounterEvents and PresenceEvents
	// receive the events of the accepted sockets.
	Acceptor       *transport.Acceptor
	CounterEvents  transport.Handler
	PresenceEvents transport.Handler

	// Identity defaults to HeaderIdentity.
	Identity IdentityProvider

	// Ready reports whether the server can take traffic. Nil means always.
	Ready func(ctx context.Context) error

	Logger logger.Logger
}

// Handler serves the public API.
type Handler struct {
	deps Deps
	log  logger.Logger
	mux  *http.ServeMux
}

// New creates a new Handler.
func New(deps Deps) *Handler {
	if deps.Identity == nil {
		deps.Identity = HeaderIdentity{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}
	h := &Handler{deps: deps, log: deps.Logger, mux: http.NewServeMux()}
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler. Unknown API paths get the JSON
// error envelope; a known path with the wrong method keeps the mux's 405.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") && !h.routed(r) {
		h.writeError(w, r, domain.ErrNotFound.WithDetails(r.URL.Path))
		return
	}
	h.mux.ServeHTTP(w, r)
}

// routed reports whether any method has a route for the request path.
func (h *Handler) routed(r *http.Request) bool {
	if _, pattern := h.mux.Handler(r); pattern != "" {
		return true
	}
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		alt := r.Clone(r.Context())
		alt.Method = method
		if _, pattern := h.mux.Handler(alt); pattern != "" {
			return true
		}
	}
	return false
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)

	// global-counter
	h.mux.HandleFunc("GET /api/counter", h.handleGetCounter)
	h.mux.HandleFunc("GET /api/counter/{$}", h.handleGetCounter)
	h.mux.HandleFunc("POST /api/counter/increment", h.handleIncrement)
	h.mux.HandleFunc("POST /api/counter/decrement", h.handleDecrement)
	h.mux.HandleFunc("GET /api/counter/websocket", h.handleCounterSocket)

	// named counters
	h.mux.HandleFunc("GET /api/counters/{name}", h.handleGetCounter)
	h.mux.HandleFunc("GET /api/counters/{name}/{$}", h.handleGetCounter)
	h.mux.HandleFunc("POST /api/counters/{name}/increment", h.handleIncrement)
	h.mux.HandleFunc("POST /api/counters/{name}/decrement", h.handleDecrement)
	h.mux.HandleFunc("GET /api/counters/{name}/websocket", h.handleCounterSocket)

	h.mux.HandleFunc("GET /api/connection-counter", h.handleGetPresence)
	h.mux.HandleFunc("GET /api/connection-counter/{$}", h.handleGetPresence)
	h.mux.HandleFunc("GET /api/connection-counter/websocket", h.handlePresenceSocket)
}

// writeJSON writes v as the bare response body.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error envelope.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, de *domain.DomainError) {
	requestID := logger.RequestIDFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", de.Code)
	w.WriteHeader(StatusForCode(de.Code))
	_ = json.NewEncoder(w).Encode(NewErrorResponse(requestID, de.Code, de.Message, de.Details))
}

// handleServiceError converts service errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.DomainError
	if errors.As(err, &de) {
		if StatusForCode(de.Code) >= 500 {
			logger.L(r.Context()).Error("request failed", "code", de.Code, "error", err)
		}
		h.writeError(w, r, de)
		return
	}

	if errors.Is(err, context.DeadlineExceeded) {
		logger.L(r.Context()).Warn("actor call timed out", "path", r.URL.Path)
		h.writeError(w, r, domain.ErrActorUnavailable.WithDetails("call timed out"))
		return
	}

	logger.L(r.Context()).Error("internal error", "error", err)
	h.writeError(w, r, domain.ErrInternalServer)
}

// StatusForCode maps an error code to its HTTP status: the first three
// digits of the numeric suffix.
func StatusForCode(code string) int {
	i := strings.LastIndexByte(code, '-')
	if i < 0 || len(code)-i-1 < 3 {
		return http.StatusInternalServerError
	}
	status, err := strconv.Atoi(code[i+1 : i+4])
	if err != nil || status < 400 || status > 599 {
		return http.StatusInternalServerError
	}
	return status
}
