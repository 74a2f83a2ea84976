package actor

import (
	"context"
	"sync"
	"time"

	"github.com/yndnr/tallymesh/internal/telemetry/logger"
	"github.com/yndnr/tallymesh/internal/transport"
)

// Default dispatch timings.
const (
	DefaultSettleDelay = 10 * time.Millisecond
	DefaultCallTimeout = 5 * time.Second
)

// SocketActor is an actor that accepts socket events.
type SocketActor interface {
	Instance
	WebSocketOpen(ctx context.Context, p transport.Peer) error
	WebSocketMessage(ctx context.Context, p transport.Peer, data []byte) error
	WebSocketClose(ctx context.Context, p transport.Peer, code int, reason string) error
	WebSocketError(ctx context.Context, p transport.Peer, err error) error
}

// Dispatcher routes transport events to the actor a socket is attached
// to, activating it when it is passivated.
type Dispatcher[A SocketActor] struct {
	ns      *Namespace[A]
	settle  time.Duration
	timeout time.Duration
	log     logger.Logger
	pending sync.WaitGroup
}

// NewDispatcher creates a dispatcher over ns. Close events are delivered
// after settle.
func NewDispatcher[A SocketActor](ns *Namespace[A], settle, timeout time.Duration, log logger.Logger) *Dispatcher[A] {
	if settle < 0 {
		settle = 0
	}
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Dispatcher[A]{ns: ns, settle: settle, timeout: timeout, log: log}
}

func (d *Dispatcher[A]) WebSocketOpen(ctx context.Context, p transport.Peer) {
	d.dispatch(ctx, p, "open", func(ctx context.Context, a A) error {
		return a.WebSocketOpen(ctx, p)
	})
}

func (d *Dispatcher[A]) WebSocketMessage(ctx context.Context, p transport.Peer, data []byte) {
	d.dispatch(ctx, p, "message", func(ctx context.Context, a A) error {
		return a.WebSocketMessage(ctx, p, data)
	})
}

func (d *Dispatcher[A]) WebSocketClose(ctx context.Context, p transport.Peer, code int, reason string) {
	d.pending.Add(1)
	time.AfterFunc(d.settle, func() {
		defer d.pending.Done()
		d.dispatch(ctx, p, "close", func(ctx context.Context, a A) error {
			return a.WebSocketClose(ctx, p, code, reason)
		})
	})
}

func (d *Dispatcher[A]) WebSocketError(ctx context.Context, p transport.Peer, err error) {
	d.dispatch(ctx, p, "error", func(ctx context.Context, a A) error {
		return a.WebSocketError(ctx, p, err)
	})
}

// Wait blocks until delayed close events have been delivered.
func (d *Dispatcher[A]) Wait() {
	d.pending.Wait()
}

func (d *Dispatcher[A]) dispatch(ctx context.Context, p transport.Peer, event string, fn func(context.Context, A) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	err := d.ns.Do(ctx, p.Name(), func(a A) error { return fn(ctx, a) })
	if err != nil {
		d.log.Warn("socket event not delivered",
			"event", event, "name", p.Name(), "socket_id", p.ID(), "error", err)
	}
}
