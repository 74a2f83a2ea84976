package actor

import (
	"context"
	"time"

	"github.com/yndnr/tallymesh/internal/core/domain"
	"github.com/yndnr/tallymesh/internal/transport"
)

// Store is the durable row store a Counter owns. Both the key-value
// backed storage.CounterStore and the Postgres sqlstore.Store satisfy it.
type Store interface {
	// Ensure creates the row with initial unless one exists and reports
	// whether it did.
	Ensure(ctx context.Context, name string, initial domain.CounterState) (bool, error)
	Load(ctx context.Context, name string) (domain.CounterState, error)
	Save(ctx context.Context, name string, st domain.CounterState) error
	// Alarm returns the zero time when no alarm is stored.
	Alarm(ctx context.Context, name string) (time.Time, error)
	SetAlarm(ctx context.Context, name string, at time.Time) error
}

// SocketSource is the view of the transport registry actors read their
// subscribers from.
type SocketSource interface {
	Sockets(name, topic string) []transport.Peer
	Count(name, topic string) int
}

// Alarms schedules maintenance wake-ups by actor name.
type Alarms interface {
	// Arm schedules name at at unless it is already scheduled.
	Arm(name string, at time.Time) bool
	// Rearm replaces any scheduled time for name.
	Rearm(name string, at time.Time)
}
