package httpserver

import (
	"net/http"

	"github.com/yndnr/tallymesh/internal/server/httpserver/handler"
	"github.com/yndnr/tallymesh/internal/telemetry/logger"
	"github.com/yndnr/tallymesh/internal/telemetry/metric"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Deps are passed to the API handler.
	Deps handler.Deps

	// Metrics serves /metrics and records request latency. Optional.
	Metrics *metric.Registry

	Logger logger.Logger

	// CORSAllowedOrigins is the list of allowed CORS origins (empty = allow all).
	CORSAllowedOrigins []string

	// RateLimitRPS is the per-IP request rate. Zero disables limiting.
	RateLimitRPS   float64
	RateLimitBurst int

	// EnableAudit enables access logging for all requests.
	EnableAudit bool
}

// NewRouter creates and configures the HTTP router with all routes and middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}
	if cfg.Deps.Logger == nil {
		cfg.Deps.Logger = log
	}
	api := handler.New(cfg.Deps)

	// Order: Recover -> RequestID -> CORS -> RateLimit -> Audit -> Metrics -> Handler
	apiChain := []Middleware{Recover(log), RequestID(log), CORS(cfg.CORSAllowedOrigins)}
	if cfg.RateLimitRPS > 0 {
		apiChain = append(apiChain, RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	}
	if cfg.EnableAudit {
		apiChain = append(apiChain, Audit(log))
	}
	if cfg.Metrics != nil {
		apiChain = append(apiChain, Metrics(cfg.Metrics))
	}

	mux := http.NewServeMux()
	mux.Handle("/", Chain(api, apiChain...))

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", Chain(cfg.Metrics.Handler(), Recover(log), RequestID(log)))
	}

	return mux
}
