package transport

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"golang.org/x/net/http/httpguts"

	"github.com/yndnr/tallymesh/internal/core/domain"
	"github.com/yndnr/tallymesh/internal/telemetry/logger"
)

// Default transport settings.
const (
	DefaultMaxConnections   = 32768
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteWait        = 10 * time.Second
	DefaultPongWait         = 60 * time.Second
	DefaultPingPeriod       = (DefaultPongWait * 9) / 10
	DefaultMaxMessageSize   = 4096
	DefaultSendBuffer       = 256

	// RetryAfterSeconds is advertised when admission is refused.
	RetryAfterSeconds = "60"
)

// Config holds socket limits and timings.
type Config struct {
	// MaxConnections is the per-actor admission ceiling.
	MaxConnections   int
	HandshakeTimeout time.Duration
	WriteWait        time.Duration
	PongWait         time.Duration
	PingPeriod       time.Duration
	MaxMessageSize   int64
	SendBuffer       int
	// AllowedOrigins restricts the Origin header; empty or "*" allows any.
	AllowedOrigins []string
}

// DefaultConfig returns the default transport configuration.
func DefaultConfig() Config {
	return Config{
		MaxConnections:   DefaultMaxConnections,
		HandshakeTimeout: DefaultHandshakeTimeout,
		WriteWait:        DefaultWriteWait,
		PongWait:         DefaultPongWait,
		PingPeriod:       DefaultPingPeriod,
		MaxMessageSize:   DefaultMaxMessageSize,
		SendBuffer:       DefaultSendBuffer,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.WriteWait <= 0 {
		c.WriteWait = d.WriteWait
	}
	if c.PongWait <= 0 {
		c.PongWait = d.PongWait
	}
	if c.PingPeriod <= 0 || c.PingPeriod >= c.PongWait {
		c.PingPeriod = (c.PongWait * 9) / 10
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	return c
}

// Acceptor validates and upgrades WebSocket requests and attaches the
// resulting sockets to the registry.
type Acceptor struct {
	cfg      Config
	registry *Registry
	upgrader websocket.Upgrader
	log      logger.Logger
	onReject func(reason string)
}

// NewAcceptor creates an acceptor.
func NewAcceptor(cfg Config, reg *Registry, log logger.Logger) *Acceptor {
	if log == nil {
		log = logger.Discard()
	}
	cfg = cfg.withDefaults()
	a := &Acceptor{cfg: cfg, registry: reg, log: log}
	a.upgrader = websocket.Upgrader{
		HandshakeTimeout: cfg.HandshakeTimeout,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      a.checkOrigin,
	}
	return a
}

// OnReject registers a callback invoked with a short reason for every
// refused upgrade.
func (a *Acceptor) OnReject(fn func(reason string)) {
	a.onReject = fn
}

// Registry returns the registry sockets are attached to.
func (a *Acceptor) Registry() *Registry {
	return a.registry
}

// CheckUpgrade validates the handshake headers in a fixed order.
func CheckUpgrade(r *http.Request) error {
	if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return domain.ErrUpgradeRequired
	}
	if !httpguts.HeaderValuesContainsToken(r.Header["Connection"], "upgrade") {
		return domain.ErrConnectionHeader
	}
	if r.Header.Get("Sec-WebSocket-Key") == "" {
		return domain.ErrMissingKey
	}
	return nil
}

// Accept upgrades r into a socket attached to actor name. kind labels
// the socket for metrics and tags are its initial topics. On failure
// the response has already been written and the returned error
// describes why.
func (a *Acceptor) Accept(w http.ResponseWriter, r *http.Request, name, kind string, tags []string, h Handler) (*Socket, error) {
	if err := CheckUpgrade(r); err != nil {
		a.reject(w, err)
		return nil, err
	}

	s := newSocket(ulid.Make().String(), name, kind, tags, a.cfg, a.registry, h, a.log)
	s.remoteAddr = r.RemoteAddr
	if err := a.registry.add(s, a.cfg.MaxConnections); err != nil {
		a.reject(w, err)
		return nil, err
	}

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.registry.remove(s)
		s.cancel()
		a.report("handshake")
		return nil, err
	}
	s.conn = conn
	s.state.Store(int32(StateOpen))

	go s.writePump()
	h.WebSocketOpen(s.ctx, s)
	go s.readPump()

	s.log.Debug("socket accepted", "kind", kind, "remote_addr", s.remoteAddr)
	return s, nil
}

func (a *Acceptor) reject(w http.ResponseWriter, err error) {
	var de *domain.DomainError
	if !errors.As(err, &de) {
		de = domain.ErrInternalServer
	}

	status := http.StatusBadRequest
	reason := "bad_handshake"
	switch {
	case errors.Is(err, domain.ErrUpgradeRequired):
		status, reason = http.StatusUpgradeRequired, "upgrade_required"
		w.Header().Set("Upgrade", "websocket")
	case errors.Is(err, domain.ErrTooManyConnections):
		status, reason = http.StatusServiceUnavailable, "capacity"
		w.Header().Set("Retry-After", RetryAfterSeconds)
	}
	a.report(reason)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Error-Code", de.Code)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(de.Message))
}

func (a *Acceptor) report(reason string) {
	if a.onReject != nil {
		a.onReject(reason)
	}
}

func (a *Acceptor) checkOrigin(r *http.Request) bool {
	if len(a.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range a.cfg.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}
