package transport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yndnr/tallymesh/internal/core/domain"
	"github.com/yndnr/tallymesh/internal/telemetry/logger"
)

// ErrSendBufferFull is returned by Send when the peer is not draining
// its outbound queue.
var ErrSendBufferFull = errors.New("send buffer full")

// State is the lifecycle state of a socket.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Peer is the view of a socket that actors work with.
type Peer interface {
	ID() string
	// Name is the actor the socket is attached to.
	Name() string
	State() State
	// Send queues a text frame. It fails unless the socket is OPEN.
	Send(data []byte) error
	// Tag adds a topic and reports whether it was newly added.
	Tag(topic string) bool
	// Untag removes a topic and reports whether it was present.
	Untag(topic string) bool
	HasTag(topic string) bool
	Close(code int, reason string)
}

// Handler receives socket events. Calls for one socket are sequential.
type Handler interface {
	WebSocketOpen(ctx context.Context, p Peer)
	WebSocketMessage(ctx context.Context, p Peer, data []byte)
	WebSocketClose(ctx context.Context, p Peer, code int, reason string)
	WebSocketError(ctx context.Context, p Peer, err error)
}

// Socket is one accepted WebSocket connection.
type Socket struct {
	id          string
	name        string
	kind        string
	remoteAddr  string
	connectedAt time.Time

	conn     *websocket.Conn
	cfg      Config
	registry *Registry
	handler  Handler
	log      logger.Logger

	state atomic.Int32
	send  chan []byte

	tagMu sync.RWMutex
	tags  map[string]struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}
}

func newSocket(id, name, kind string, tags []string, cfg Config, reg *Registry, h Handler, log logger.Logger) *Socket {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Socket{
		id:          id,
		name:        name,
		kind:        kind,
		connectedAt: time.Now(),
		cfg:         cfg,
		registry:    reg,
		handler:     h,
		log:         log.With("socket_id", id, "actor", name),
		send:        make(chan []byte, cfg.SendBuffer),
		tags:        make(map[string]struct{}, len(tags)),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	for _, t := range tags {
		s.tags[t] = struct{}{}
	}
	s.state.Store(int32(StateConnecting))
	return s
}

func (s *Socket) ID() string             { return s.id }
func (s *Socket) Name() string           { return s.name }
func (s *Socket) Kind() string           { return s.kind }
func (s *Socket) RemoteAddr() string     { return s.remoteAddr }
func (s *Socket) ConnectedAt() time.Time { return s.connectedAt }
func (s *Socket) State() State           { return State(s.state.Load()) }

// Context is canceled once the socket is closed.
func (s *Socket) Context() context.Context { return s.ctx }

// Done is closed once the socket is closed.
func (s *Socket) Done() <-chan struct{} { return s.done }

func (s *Socket) Tag(topic string) bool {
	s.tagMu.Lock()
	defer s.tagMu.Unlock()
	if _, ok := s.tags[topic]; ok {
		return false
	}
	s.tags[topic] = struct{}{}
	return true
}

func (s *Socket) Untag(topic string) bool {
	s.tagMu.Lock()
	defer s.tagMu.Unlock()
	if _, ok := s.tags[topic]; !ok {
		return false
	}
	delete(s.tags, topic)
	return true
}

func (s *Socket) HasTag(topic string) bool {
	s.tagMu.RLock()
	defer s.tagMu.RUnlock()
	_, ok := s.tags[topic]
	return ok
}

func (s *Socket) Send(data []byte) error {
	if s.State() != StateOpen {
		return domain.ErrSocketClosed
	}
	select {
	case <-s.done:
		return domain.ErrSocketClosed
	case s.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close sends a close frame and tears the connection down. The close
// event is delivered to the handler with the given code.
func (s *Socket) Close(code int, reason string) {
	if s.State() == StateClosed {
		return
	}
	if s.conn != nil {
		msg := websocket.FormatCloseMessage(code, reason)
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.cfg.WriteWait))
	}
	s.finish(code, reason)
}

// finish moves the socket to CLOSED, removes it from the registry and
// only then dispatches the close event.
func (s *Socket) finish(code int, reason string) {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		s.registry.remove(s)
		close(s.done)
		s.cancel()
		if s.conn != nil {
			_ = s.conn.Close()
		}
		s.log.Debug("socket closed", "code", code, "reason", reason)
		s.handler.WebSocketClose(context.Background(), s, code, reason)
	})
}

func (s *Socket) readPump() {
	s.conn.SetReadLimit(s.cfg.MaxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			code, reason := closeStatus(err)
			if s.State() == StateOpen && websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				s.handler.WebSocketError(s.ctx, s, err)
			}
			s.finish(code, reason)
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))

		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		s.handler.WebSocketMessage(s.ctx, s, data)
	}
}

func (s *Socket) writePump() {
	ticker := time.NewTicker(s.cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.log.Debug("write failed", "error", err)
				s.finish(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.finish(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		case <-s.done:
			return
		}
	}
}

func closeStatus(err error) (int, string) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text
	}
	return websocket.CloseAbnormalClosure, err.Error()
}
