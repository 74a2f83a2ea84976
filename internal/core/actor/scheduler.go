package actor

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yndnr/tallymesh/internal/telemetry/logger"
)

// DefaultMaintenanceInterval spaces maintenance alarms of one actor.
const DefaultMaintenanceInterval = 24 * time.Hour

// DefaultStoreTimeout bounds the storage work of one accepted mutation.
const DefaultStoreTimeout = 10 * time.Second

// Scheduler keeps one pending alarm per actor name and fires due alarms
// from a cron sweep. A fired alarm is removed; the handler is expected
// to rearm it.
type Scheduler struct {
	cron *cron.Cron
	now  func() time.Time
	log  logger.Logger

	mu      sync.Mutex
	alarms  map[string]time.Time
	handler func(ctx context.Context, name string)
}

// NewScheduler creates a scheduler that checks for due alarms every tick.
// cron rounds ticks below one second up to one second.
func NewScheduler(tick time.Duration, log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Discard()
	}
	s := &Scheduler{
		now:    time.Now,
		log:    log.With("component", "scheduler"),
		alarms: make(map[string]time.Time),
	}
	cl := cronLogger{log: s.log}
	s.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	s.cron.Schedule(cron.Every(tick), cron.FuncJob(s.sweep))
	return s
}

// SetHandler sets the callback that receives due alarms.
func (s *Scheduler) SetHandler(fn func(ctx context.Context, name string)) {
	s.mu.Lock()
	s.handler = fn
	s.mu.Unlock()
}

func (s *Scheduler) Arm(name string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alarms[name]; ok {
		return false
	}
	s.alarms[name] = at
	return true
}

func (s *Scheduler) Rearm(name string, at time.Time) {
	s.mu.Lock()
	s.alarms[name] = at
	s.mu.Unlock()
}

// Armed returns the pending alarm for name.
func (s *Scheduler) Armed(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.alarms[name]
	return at, ok
}

func (s *Scheduler) Disarm(name string) {
	s.mu.Lock()
	delete(s.alarms, name)
	s.mu.Unlock()
}

// Len returns the number of pending alarms.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alarms)
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the sweep and waits for a running one to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) sweep() {
	s.fireDue(s.now())
}

// fireDue removes and delivers every alarm at or before now.
func (s *Scheduler) fireDue(now time.Time) int {
	s.mu.Lock()
	handler := s.handler
	if handler == nil {
		s.mu.Unlock()
		return 0
	}
	var due []string
	for name, at := range s.alarms {
		if !at.After(now) {
			due = append(due, name)
			delete(s.alarms, name)
		}
	}
	s.mu.Unlock()

	for _, name := range due {
		s.log.Debug("alarm due", "name", name)
		handler(context.Background(), name)
	}
	return len(due)
}

// cronLogger adapts Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
