package connection

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yndnr/tallymesh/internal/core/domain"
	"github.com/yndnr/tallymesh/internal/telemetry/logger"
)

// State is the connection state reported to callers.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateError        State = "error"
)

// Socket defaults.
const (
	DefaultReconnectInterval    = 5 * time.Second
	DefaultMaxReconnectAttempts = 3
	DefaultPingInterval         = 50 * time.Second
	DefaultHandshakeTimeout     = 10 * time.Second
)

// ErrDisconnected is reported when a send is attempted without an open
// connection.
var ErrDisconnected = errors.New("connection: socket not connected")

// SocketOptions configures a Socket. Callbacks are optional and run on
// the socket's reader goroutine, so they must not block for long.
type SocketOptions struct {
	URL                  string
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int
	PingInterval         time.Duration
	HandshakeTimeout     time.Duration
	Header               http.Header
	TLSConfig            *tls.Config

	OnCounterState    func(domain.CounterState)
	OnCounterUpdate   func(domain.CounterState)
	OnConnectionCount func(int)
	OnStateChange     func(State)
	OnError           func(error)

	Logger logger.Logger
}

func (o SocketOptions) withDefaults() SocketOptions {
	if o.ReconnectInterval <= 0 {
		o.ReconnectInterval = DefaultReconnectInterval
	}
	if o.MaxReconnectAttempts < 0 {
		o.MaxReconnectAttempts = 0
	}
	if o.PingInterval <= 0 {
		o.PingInterval = DefaultPingInterval
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if o.Logger == nil {
		o.Logger = logger.Discard()
	}
	return o
}

// Socket is a WebSocket to one actor that subscribes on open, keeps the
// connection alive with "ping" and reconnects a bounded number of times
// after an unexpected close.
type Socket struct {
	opts   SocketOptions
	dialer *websocket.Dialer
	log    logger.Logger

	// writeMu serializes writes on conn.
	writeMu sync.Mutex

	mu        sync.Mutex
	conn      *websocket.Conn
	state     State
	lastErr   error
	attempts  int
	count     int
	manual    bool
	reconnect *time.Timer
	dialing   bool
	stopPing  chan struct{}
	// gen invalidates reconnect timers scheduled before the last
	// Connect or Disconnect.
	gen uint64
}

// NewSocket creates a disconnected socket.
func NewSocket(opts SocketOptions) *Socket {
	opts = opts.withDefaults()
	return &Socket{
		opts: opts,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
			TLSClientConfig:  opts.TLSConfig,
		},
		log:   opts.Logger.With("url", opts.URL),
		state: StateDisconnected,
	}
}

// State returns the current state.
func (s *Socket) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError returns the most recent connection error, if any.
func (s *Socket) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Attempts returns the reconnect attempts made since the last open.
func (s *Socket) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// ConnectionCount returns the last reported connection count.
func (s *Socket) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Idle reports whether the socket is closed with no dial in flight and
// no reconnect pending, either after Disconnect or once the reconnect
// attempts are used up.
func (s *Socket) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn == nil && s.reconnect == nil && !s.dialing
}

// Connect resets the reconnect budget and dials. A failed dial still
// schedules reconnects; the returned error is that of the first dial.
func (s *Socket) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.conn != nil {
		s.mu.Unlock()
		return nil
	}
	s.manual = false
	s.attempts = 0
	s.gen++
	s.cancelReconnectLocked()
	s.dialing = true
	gen := s.gen
	s.mu.Unlock()

	return s.dial(ctx, gen)
}

// Disconnect unsubscribes and closes the socket. No reconnect follows.
func (s *Socket) Disconnect() {
	s.mu.Lock()
	s.manual = true
	s.gen++
	s.cancelReconnectLocked()
	s.dialing = false
	s.stopPingLocked()
	conn := s.conn
	s.conn = nil
	s.attempts = 0
	s.count = 0
	s.mu.Unlock()

	if conn != nil {
		_ = s.write(conn, websocket.TextMessage, domain.UnsubscribeFrame(time.Now()).Encode())
		deadline := time.Now().Add(time.Second)
		s.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect"), deadline)
		s.writeMu.Unlock()
		_ = conn.Close()
	}
	s.setState(StateDisconnected)
}

// Send writes a raw text frame.
func (s *Socket) Send(data []byte) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrDisconnected
	}
	return s.write(conn, websocket.TextMessage, data)
}

func (s *Socket) dial(ctx context.Context, gen uint64) error {
	s.setState(StateConnecting)

	conn, resp, err := s.dialer.DialContext(ctx, s.opts.URL, s.opts.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("dial %s: %w (status %d)", s.opts.URL, err, resp.StatusCode)
		} else {
			err = fmt.Errorf("dial %s: %w", s.opts.URL, err)
		}
		s.fail(err)
		s.closed(nil, gen)
		return err
	}

	s.mu.Lock()
	if s.manual || s.gen != gen {
		s.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	s.dialing = false
	s.conn = conn
	s.attempts = 0
	s.lastErr = nil
	stop := make(chan struct{})
	s.stopPing = stop
	s.mu.Unlock()

	s.setState(StateConnected)
	if err := s.write(conn, websocket.TextMessage, domain.SubscribeFrame(time.Now()).Encode()); err != nil {
		s.log.Debug("subscribe failed", "error", err)
	}

	go s.pingLoop(conn, stop)
	go s.readLoop(conn, gen)
	return nil
}

func (s *Socket) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			s.closed(conn, gen)
			return
		}
		if string(raw) == domain.PongFrame {
			continue
		}
		s.route(raw)
	}
}

// route hands a frame to its callback. Malformed frames are ignored.
func (s *Socket) route(raw []byte) {
	f, err := domain.DecodeFrame(raw)
	if err != nil {
		s.log.Debug("ignoring malformed frame", "error", err)
		return
	}

	switch f.Type {
	case domain.TypeCounterState:
		if f.Data != nil && s.opts.OnCounterState != nil {
			s.opts.OnCounterState(*f.Data)
		}
	case domain.TypeCounterUpdate:
		if f.Data != nil && s.opts.OnCounterUpdate != nil {
			s.opts.OnCounterUpdate(*f.Data)
		}
	case domain.TypeConnectionCount:
		if f.Count == nil {
			return
		}
		s.mu.Lock()
		s.count = *f.Count
		s.mu.Unlock()
		if s.opts.OnConnectionCount != nil {
			s.opts.OnConnectionCount(*f.Count)
		}
	}
}

func (s *Socket) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := s.write(conn, websocket.TextMessage, []byte(domain.PingFrame)); err != nil {
				s.log.Debug("ping failed", "error", err)
				return
			}
		}
	}
}

// closed handles the end of conn. A nil conn means the dial failed.
func (s *Socket) closed(conn *websocket.Conn, gen uint64) {
	s.mu.Lock()
	if conn != nil {
		if s.conn != conn {
			s.mu.Unlock()
			return
		}
		s.conn = nil
		s.stopPingLocked()
		_ = conn.Close()
	}
	if s.manual || s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.dialing = false

	if s.attempts >= s.opts.MaxReconnectAttempts {
		s.mu.Unlock()
		s.log.Info("reconnect attempts exhausted", "attempts", s.opts.MaxReconnectAttempts)
		s.setState(StateDisconnected)
		return
	}
	s.attempts++
	attempt := s.attempts
	s.reconnect = time.AfterFunc(s.opts.ReconnectInterval, func() {
		s.mu.Lock()
		current := !s.manual && s.gen == gen
		if current {
			s.reconnect = nil
			s.dialing = true
		}
		s.mu.Unlock()
		if current {
			_ = s.dial(context.Background(), gen)
		}
	})
	s.mu.Unlock()

	s.log.Debug("reconnect scheduled", "attempt", attempt, "in", s.opts.ReconnectInterval)
	s.setState(StateDisconnected)
}

func (s *Socket) fail(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()

	s.setState(StateError)
	if s.opts.OnError != nil {
		s.opts.OnError(err)
	}
}

func (s *Socket) write(conn *websocket.Conn, mt int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(s.opts.HandshakeTimeout))
	return conn.WriteMessage(mt, data)
}

func (s *Socket) setState(st State) {
	s.mu.Lock()
	changed := s.state != st
	s.state = st
	s.mu.Unlock()

	if changed && s.opts.OnStateChange != nil {
		s.opts.OnStateChange(st)
	}
}

func (s *Socket) cancelReconnectLocked() {
	if s.reconnect != nil {
		s.reconnect.Stop()
		s.reconnect = nil
	}
}

func (s *Socket) stopPingLocked() {
	if s.stopPing != nil {
		close(s.stopPing)
		s.stopPing = nil
	}
}
