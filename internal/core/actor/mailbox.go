package actor

import (
	"context"
	"sync"

	"github.com/yndnr/tallymesh/internal/core/domain"
)

// mailbox runs submitted calls sequentially on one goroutine.
type mailbox struct {
	calls    chan func()
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newMailbox() *mailbox {
	m := &mailbox{
		calls: make(chan func()),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *mailbox) run() {
	defer close(m.done)
	for {
		select {
		case fn := <-m.calls:
			fn()
		case <-m.quit:
			return
		}
	}
}

// do runs fn on the mailbox goroutine and waits for it to return. Once
// accepted, fn runs to completion even if ctx is canceled.
func (m *mailbox) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	select {
	case m.calls <- func() {
		defer close(finished)
		fn()
	}:
	case <-m.quit:
		return domain.ErrActorPassivated
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// stop refuses new calls and waits for the running one to finish.
func (m *mailbox) stop() {
	m.stopOnce.Do(func() { close(m.quit) })
	<-m.done
}

func call[T any](ctx context.Context, m *mailbox, fn func() (T, error)) (T, error) {
	var (
		v   T
		err error
	)
	if merr := m.do(ctx, func() { v, err = fn() }); merr != nil {
		return v, merr
	}
	return v, err
}
