package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yndnr/tallymesh/internal/core/actor"
	"github.com/yndnr/tallymesh/internal/core/domain"
	"github.com/yndnr/tallymesh/internal/telemetry/logger"
)

// AlarmSource lists stored counters and their persisted alarms.
type AlarmSource interface {
	Names(ctx context.Context) ([]string, error)
	Alarm(ctx context.Context, name string) (time.Time, error)
}

// CounterService routes counter operations to the owning actor.
type CounterService struct {
	ns      *actor.Namespace[*actor.Counter]
	timeout time.Duration
	log     logger.Logger
}

// NewCounterService creates a CounterService. A non-positive timeout
// selects actor.DefaultCallTimeout.
func NewCounterService(ns *actor.Namespace[*actor.Counter], timeout time.Duration, log logger.Logger) *CounterService {
	if timeout <= 0 {
		timeout = actor.DefaultCallTimeout
	}
	if log == nil {
		log = logger.Discard()
	}
	return &CounterService{ns: ns, timeout: timeout, log: log}
}

// Get returns the current state of name.
func (s *CounterService) Get(ctx context.Context, name string) (domain.CounterState, error) {
	return s.call(ctx, name, func(ctx context.Context, c *actor.Counter) (domain.CounterState, error) {
		return c.Get(ctx)
	})
}

// Increment adds amount to name.
func (s *CounterService) Increment(ctx context.Context, name string, amount int64, updater string) (domain.CounterState, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return domain.CounterState{}, err
	}
	return s.call(ctx, name, func(ctx context.Context, c *actor.Counter) (domain.CounterState, error) {
		return c.Increment(ctx, amount, updater)
	})
}

// Decrement subtracts amount from name.
func (s *CounterService) Decrement(ctx context.Context, name string, amount int64, updater string) (domain.CounterState, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return domain.CounterState{}, err
	}
	return s.call(ctx, name, func(ctx context.Context, c *actor.Counter) (domain.CounterState, error) {
		return c.Decrement(ctx, amount, updater)
	})
}

// Alarm delivers a maintenance alarm to name. It is the scheduler's
// handler.
func (s *CounterService) Alarm(ctx context.Context, name string) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.ns.Do(ctx, name, func(c *actor.Counter) error {
		return c.Alarm(ctx)
	})
	if err != nil {
		s.log.Error("alarm delivery failed", "actor", name, "error", err)
	}
}

// RestoreAlarms arms every persisted alarm so that counters which are
// not touched after a restart still get their maintenance run. A
// counter without a stored alarm is skipped; its first activation arms
// one.
func (s *CounterService) RestoreAlarms(ctx context.Context, src AlarmSource, alarms actor.Alarms) (int, error) {
	names, err := src.Names(ctx)
	if err != nil {
		return 0, fmt.Errorf("list counters: %w", err)
	}

	armed := 0
	var errs []error
	for _, name := range names {
		at, err := src.Alarm(ctx, name)
		if err != nil {
			errs = append(errs, fmt.Errorf("alarm %s: %w", name, err))
			continue
		}
		if at.IsZero() {
			continue
		}
		if alarms.Arm(name, at) {
			armed++
		}
	}
	s.log.Info("alarms restored", "counters", len(names), "armed", armed)
	return armed, errors.Join(errs...)
}

func (s *CounterService) call(ctx context.Context, name string, fn func(context.Context, *actor.Counter) (domain.CounterState, error)) (domain.CounterState, error) {
	if err := domain.ValidateCounterName(name); err != nil {
		return domain.CounterState{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var st domain.CounterState
	err := s.ns.Do(ctx, name, func(c *actor.Counter) error {
		var err error
		st, err = fn(ctx, c)
		return err
	})
	return st, err
}
