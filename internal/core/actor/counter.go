package actor

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yndnr/tallymesh/internal/core/domain"
	"github.com/yndnr/tallymesh/internal/telemetry/logger"
	"github.com/yndnr/tallymesh/internal/telemetry/metric"
	"github.com/yndnr/tallymesh/internal/transport"
)

// KindCounter labels counter actors in metrics and logs.
const KindCounter = "counter"

// MaintenanceHook runs on every maintenance alarm with the current state.
type MaintenanceHook func(ctx context.Context, name string, st domain.CounterState) error

// CounterEnv holds the collaborators shared by every Counter.
type CounterEnv struct {
	Store   Store
	Sockets SocketSource
	Alarms  Alarms
	Clock   func() time.Time
	Logger  logger.Logger
	// Metrics is optional.
	Metrics             *metric.Registry
	MaintenanceInterval time.Duration
	// StoreTimeout bounds the storage work of an accepted mutation.
	StoreTimeout time.Duration
	Hooks        []MaintenanceHook
}

func (e *CounterEnv) now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now()
}

func (e *CounterEnv) interval() time.Duration {
	if e.MaintenanceInterval > 0 {
		return e.MaintenanceInterval
	}
	return DefaultMaintenanceInterval
}

// storeContext detaches ctx from the caller's cancellation and bounds it
// by StoreTimeout.
func (e *CounterEnv) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := e.StoreTimeout
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

// Counter is the single writer for one named counter.
type Counter struct {
	name string
	env  *CounterEnv
	log  logger.Logger
	mb   *mailbox

	// owned by the mailbox goroutine
	initialized bool
	state       domain.CounterState
}

// NewCounter creates a counter actor. State is loaded on first use.
func NewCounter(name string, env *CounterEnv) *Counter {
	log := env.Logger
	if log == nil {
		log = logger.Discard()
	}
	return &Counter{
		name: name,
		env:  env,
		log:  log.With("actor", name, "actor_kind", KindCounter),
		mb:   newMailbox(),
	}
}

// NewCounterFactory returns a constructor for Namespace.
func NewCounterFactory(env *CounterEnv) func(name string) *Counter {
	return func(name string) *Counter { return NewCounter(name, env) }
}

func (c *Counter) Name() string { return c.name }

func (c *Counter) stop() { c.mb.stop() }

// ensureInitialized creates the row if absent, loads it, and makes sure
// a maintenance alarm is persisted and scheduled.
func (c *Counter) ensureInitialized(ctx context.Context) error {
	if c.initialized {
		return nil
	}
	now := c.env.now()

	created, err := c.env.Store.Ensure(ctx, c.name, domain.NewCounterState(now))
	if err != nil {
		return domain.ErrStorageError.WithCause(err)
	}
	st, err := c.env.Store.Load(ctx, c.name)
	if err != nil {
		return domain.ErrStorageError.WithCause(err)
	}

	at, err := c.env.Store.Alarm(ctx, c.name)
	if err != nil {
		return domain.ErrStorageError.WithCause(err)
	}
	if at.IsZero() {
		at = now.Add(c.env.interval())
		if err := c.env.Store.SetAlarm(ctx, c.name, at); err != nil {
			return domain.ErrStorageError.WithCause(err)
		}
	}
	if c.env.Alarms != nil {
		c.env.Alarms.Arm(c.name, at)
	}

	c.state = st
	c.initialized = true
	c.log.Debug("counter initialized", "created", created, "value", st.Value, "alarm", at)
	return nil
}

// Get returns the current state.
func (c *Counter) Get(ctx context.Context) (domain.CounterState, error) {
	return call(ctx, c.mb, func() (domain.CounterState, error) {
		if err := c.ensureInitialized(ctx); err != nil {
			return domain.CounterState{}, err
		}
		return c.state.Clone(), nil
	})
}

// Increment adds amount and returns the committed state.
func (c *Counter) Increment(ctx context.Context, amount int64, updater string) (domain.CounterState, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return domain.CounterState{}, err
	}
	return c.mutate(ctx, "increment", func(st domain.CounterState, now time.Time) domain.CounterState {
		return st.Incremented(amount, updater, now)
	})
}

// Decrement subtracts amount and returns the committed state. The value
// may go below zero.
func (c *Counter) Decrement(ctx context.Context, amount int64, updater string) (domain.CounterState, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return domain.CounterState{}, err
	}
	return c.mutate(ctx, "decrement", func(st domain.CounterState, now time.Time) domain.CounterState {
		return st.Decremented(amount, updater, now)
	})
}

// mutate persists the next state before committing it. On a failed save
// the in-memory state is left untouched and nothing is broadcast. Once
// the mailbox accepts the call, the write runs to completion even if the
// caller gives up.
func (c *Counter) mutate(ctx context.Context, op string, next func(domain.CounterState, time.Time) domain.CounterState) (domain.CounterState, error) {
	return call(ctx, c.mb, func() (domain.CounterState, error) {
		sctx, cancel := c.env.storeContext(ctx)
		defer cancel()

		if err := c.ensureInitialized(sctx); err != nil {
			return domain.CounterState{}, err
		}

		now := c.env.now()
		st := next(c.state, now)
		if err := c.env.Store.Save(sctx, c.name, st); err != nil {
			c.log.Error("persist counter failed", "op", op, "error", err)
			return domain.CounterState{}, domain.ErrStorageError.WithCause(err)
		}
		c.state = st

		if m := c.env.Metrics; m != nil {
			m.CounterMutations.WithLabelValues(op).Inc()
			m.CounterValue.WithLabelValues(c.name).Set(float64(st.Value))
		}
		c.broadcast(domain.TopicCounterUpdates, domain.CounterUpdateFrame(st, now).Encode())
		return st.Clone(), nil
	})
}

// WebSocketOpen loads the counter for the new socket. Nothing is sent
// until the client subscribes.
func (c *Counter) WebSocketOpen(ctx context.Context, p transport.Peer) error {
	return c.mb.do(ctx, func() {
		if err := c.ensureInitialized(ctx); err != nil {
			c.log.Warn("counter unavailable for new socket", "socket_id", p.ID(), "error", err)
		}
	})
}

// WebSocketMessage answers ping without touching state. Other frames go
// through the mailbox.
func (c *Counter) WebSocketMessage(ctx context.Context, p transport.Peer, data []byte) error {
	msg := domain.DecodeInbound(data)
	if _, ok := msg.(domain.Ping); ok {
		c.send(p, []byte(domain.PongFrame))
		return nil
	}

	return c.mb.do(ctx, func() {
		switch m := msg.(type) {
		case domain.Subscribe:
			p.Tag(domain.TopicCounterUpdates)
			if err := c.ensureInitialized(ctx); err != nil {
				c.log.Warn("counter unavailable for subscribe", "socket_id", p.ID(), "error", err)
				return
			}
			c.sendState(p)
			c.broadcastCount()
		case domain.Unsubscribe:
			p.Untag(domain.TopicCounterUpdates)
			c.broadcastCount()
		case domain.Unknown:
			c.log.Debug("ignoring socket message", "socket_id", p.ID(), "type", m.Type)
		}
	})
}

// WebSocketClose runs after the socket has left the registry.
func (c *Counter) WebSocketClose(ctx context.Context, p transport.Peer, code int, reason string) error {
	return c.mb.do(ctx, func() {
		c.log.Debug("socket closed", "socket_id", p.ID(), "code", code, "reason", reason)
		c.broadcastCount()
	})
}

func (c *Counter) WebSocketError(ctx context.Context, p transport.Peer, err error) error {
	c.log.Warn("socket error", "socket_id", p.ID(), "error", err)
	p.Close(websocket.CloseInternalServerErr, "socket error")
	return nil
}

// Alarm runs the maintenance hooks and schedules the next alarm. The
// next alarm is scheduled even when a hook fails.
func (c *Counter) Alarm(ctx context.Context) error {
	_, err := call(ctx, c.mb, func() (struct{}, error) {
		if err := c.ensureInitialized(ctx); err != nil {
			return struct{}{}, err
		}

		var errs []error
		for _, hook := range c.env.Hooks {
			if err := hook(ctx, c.name, c.state.Clone()); err != nil {
				c.log.Warn("maintenance hook failed", "error", err)
				errs = append(errs, err)
			}
		}

		next := c.env.now().Add(c.env.interval())
		if c.env.Alarms != nil {
			c.env.Alarms.Rearm(c.name, next)
		}
		if err := c.env.Store.SetAlarm(ctx, c.name, next); err != nil {
			errs = append(errs, domain.ErrStorageError.WithCause(err))
		}
		return struct{}{}, errors.Join(errs...)
	})
	return err
}

// SummaryHook logs the state and refreshes the value gauge.
func SummaryHook(log logger.Logger, m *metric.Registry) MaintenanceHook {
	return func(_ context.Context, name string, st domain.CounterState) error {
		log.Info("counter maintenance",
			"name", name,
			"value", st.Value,
			"total_increments", st.TotalIncrements,
			"total_decrements", st.TotalDecrements,
		)
		if m != nil {
			m.CounterValue.WithLabelValues(name).Set(float64(st.Value))
		}
		return nil
	}
}

func (c *Counter) sendState(p transport.Peer) {
	c.send(p, domain.CounterStateFrame(c.state, c.env.now()).Encode())
}

// broadcastCount sends the number of subscribed sockets to every open
// socket of this counter.
func (c *Counter) broadcastCount() {
	n := c.env.Sockets.Count(c.name, domain.TopicCounterUpdates)
	c.broadcast("", domain.ConnectionCountFrame(n, c.env.now()).Encode())
}

func (c *Counter) broadcast(topic string, frame []byte) {
	transport.Broadcast(c.env.Sockets.Sockets(c.name, topic), frame, c.sendFailed)
}

func (c *Counter) send(p transport.Peer, frame []byte) {
	if err := p.Send(frame); err != nil {
		c.sendFailed(p, err)
	}
}

func (c *Counter) sendFailed(p transport.Peer, err error) {
	c.log.Debug("send failed", "socket_id", p.ID(), "error", err)
	if c.env.Metrics != nil {
		c.env.Metrics.BroadcastFailures.Inc()
	}
}
