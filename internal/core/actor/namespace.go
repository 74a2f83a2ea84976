package actor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/yndnr/tallymesh/internal/core/domain"
	"github.com/yndnr/tallymesh/internal/telemetry/logger"
	"github.com/yndnr/tallymesh/internal/telemetry/metric"
)

// DefaultIdleTimeout is how long an instance may stay idle before it is
// passivated.
const DefaultIdleTimeout = 30 * time.Second

// maxAttempts bounds how often Do retries a call that raced with
// passivation.
const maxAttempts = 3

// Instance is an actor that a Namespace can host.
type Instance interface {
	Name() string
	// stop refuses further calls and waits for the running one.
	stop()
}

// Namespace resolves names to live instances of one actor kind. It keeps
// at most one instance per name and passivates instances that have not
// been used for the idle timeout.
type Namespace[A Instance] struct {
	kind    string
	newFn   func(name string) A
	cache   *ttlcache.Cache[string, A]
	metrics *metric.Registry
	log     logger.Logger
	started atomic.Bool

	mu       sync.Mutex
	closed   bool
	live     map[string]A
	retiring map[string]chan struct{}
}

// NamespaceOptions configures a Namespace.
type NamespaceOptions struct {
	IdleTimeout time.Duration
	Metrics     *metric.Registry
	Logger      logger.Logger
}

// NewNamespace creates a namespace that builds instances with newFn.
func NewNamespace[A Instance](kind string, newFn func(name string) A, opts NamespaceOptions) *Namespace[A] {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}

	n := &Namespace[A]{
		kind:     kind,
		newFn:    newFn,
		metrics:  opts.Metrics,
		log:      opts.Logger.With("actor_kind", kind),
		live:     make(map[string]A),
		retiring: make(map[string]chan struct{}),
	}
	n.cache = ttlcache.New[string, A](
		ttlcache.WithTTL[string, A](opts.IdleTimeout),
	)
	n.cache.OnEviction(n.evicted)
	return n
}

// Start runs the idle sweeper.
func (n *Namespace[A]) Start() {
	if n.started.CompareAndSwap(false, true) {
		go n.cache.Start()
	}
}

// Get returns the live instance for name, activating one if needed. A
// previous instance that is still draining is waited for first.
func (n *Namespace[A]) Get(name string) (A, error) {
	for {
		if item := n.cache.Get(name); item != nil {
			return item.Value(), nil
		}

		n.mu.Lock()
		if n.closed {
			n.mu.Unlock()
			var zero A
			return zero, domain.ErrActorUnavailable.WithDetails("namespace closed")
		}
		if done, ok := n.retiring[name]; ok {
			n.mu.Unlock()
			<-done
			continue
		}
		a, ok := n.live[name]
		if !ok {
			a = n.newFn(name)
			n.live[name] = a
			n.activated(name)
		}
		n.cache.Set(name, a, ttlcache.DefaultTTL)
		n.mu.Unlock()
		return a, nil
	}
}

// Do runs fn against the instance for name. If the instance was
// passivated while the call was queued, fn is retried on a fresh one.
func (n *Namespace[A]) Do(ctx context.Context, name string, fn func(A) error) error {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		a, err := n.Get(name)
		if err != nil {
			return err
		}
		err = fn(a)
		if !errors.Is(err, domain.ErrActorPassivated) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n.log.Debug("call raced with passivation", "name", name, "attempt", attempt)
	}
	return domain.ErrActorUnavailable.WithDetails(name)
}

// Len returns the number of live instances.
func (n *Namespace[A]) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.live)
}

// Passivate retires the instance for name now, if one is live.
func (n *Namespace[A]) Passivate(name string) {
	n.cache.Delete(name)
}

// Close stops every instance. Later calls fail with ErrActorUnavailable.
func (n *Namespace[A]) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	all := n.live
	n.live = make(map[string]A)
	pending := make([]chan struct{}, 0, len(n.retiring))
	for _, done := range n.retiring {
		pending = append(pending, done)
	}
	n.mu.Unlock()

	if n.started.Load() {
		n.cache.Stop()
	}
	n.cache.DeleteAll()

	for name, a := range all {
		a.stop()
		n.passivated(name)
	}
	for _, done := range pending {
		<-done
	}
}

// evicted runs on the cache's event goroutine.
func (n *Namespace[A]) evicted(_ context.Context, _ ttlcache.EvictionReason, item *ttlcache.Item[string, A]) {
	name, a := item.Key(), item.Value()

	n.mu.Lock()
	cur, ok := n.live[name]
	if !ok || Instance(cur) != Instance(a) || n.cache.Has(name) {
		// already retired, replaced, or touched again since expiry
		n.mu.Unlock()
		return
	}
	delete(n.live, name)
	done := make(chan struct{})
	n.retiring[name] = done
	n.mu.Unlock()

	go func() {
		a.stop()
		n.mu.Lock()
		delete(n.retiring, name)
		n.mu.Unlock()
		close(done)
		n.passivated(name)
	}()
}

func (n *Namespace[A]) activated(name string) {
	n.log.Debug("actor activated", "name", name)
	if n.metrics != nil {
		n.metrics.ActorActivations.WithLabelValues(n.kind).Inc()
	}
}

func (n *Namespace[A]) passivated(name string) {
	n.log.Debug("actor passivated", "name", name)
	if n.metrics != nil {
		n.metrics.ActorPassivations.WithLabelValues(n.kind).Inc()
	}
}
