package connection

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Group aggregates several sockets that make up one view, such as a
// counter socket and a presence socket.
type Group struct {
	sockets []*Socket

	mu   sync.Mutex
	last State
}

// NewGroup creates a group over sockets.
func NewGroup(sockets ...*Socket) *Group {
	return &Group{sockets: sockets, last: StateDisconnected}
}

// Connect dials all sockets concurrently and returns the first error.
// Sockets that failed keep retrying on their own schedule.
func (g *Group) Connect(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, s := range g.sockets {
		eg.Go(func() error { return s.Connect(ctx) })
	}
	return eg.Wait()
}

// Disconnect closes every socket.
func (g *Group) Disconnect() {
	for _, s := range g.sockets {
		s.Disconnect()
	}
}

// State is connected when every socket is connected, connecting when
// any is connecting and disconnected when every socket is disconnected.
// A socket in error makes the group error. A mix of connected and
// disconnected sockets keeps the previously reported state.
func (g *Group) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.sockets) == 0 {
		g.last = StateDisconnected
		return g.last
	}

	connected, disconnected, failed := 0, 0, 0
	for _, s := range g.sockets {
		switch s.State() {
		case StateConnecting:
			g.last = StateConnecting
			return g.last
		case StateConnected:
			connected++
		case StateDisconnected:
			disconnected++
		case StateError:
			failed++
		}
	}

	switch {
	case connected == len(g.sockets):
		g.last = StateConnected
	case disconnected == len(g.sockets):
		g.last = StateDisconnected
	case failed > 0:
		g.last = StateError
	}
	return g.last
}

// Lost reports whether any socket has stopped trying to reconnect.
func (g *Group) Lost() bool {
	for _, s := range g.sockets {
		if s.Idle() {
			return true
		}
	}
	return false
}

// LastError returns the first socket error found, if any.
func (g *Group) LastError() error {
	for _, s := range g.sockets {
		if err := s.LastError(); err != nil {
			return err
		}
	}
	return nil
}
