package domain

import (
	"fmt"
	"math"
	"regexp"
	"time"
)

// Well-known actor names.
const (
	GlobalCounterName  = "global-counter"
	GlobalPresenceName = "global-connection-counter"
)

// Amount bounds for a single mutation.
const (
	MinAmount     int64 = 1
	MaxAmount     int64 = 1000
	DefaultAmount int64 = 1
)

var counterNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// CounterState is the durable snapshot of one counter.
type CounterState struct {
	Value           int64   `json:"value"`
	LastUpdated     int64   `json:"lastUpdated"` // epoch milliseconds
	TotalIncrements int64   `json:"totalIncrements"`
	TotalDecrements int64   `json:"totalDecrements"`
	LastUpdater     *string `json:"lastUpdater"`
}

// NewCounterState returns the default row written on first access.
func NewCounterState(now time.Time) CounterState {
	return CounterState{LastUpdated: now.UnixMilli()}
}

// Clone returns a deep copy.
func (s CounterState) Clone() CounterState {
	if s.LastUpdater != nil {
		u := *s.LastUpdater
		s.LastUpdater = &u
	}
	return s
}

// Incremented returns the state after adding amount. The receiver is not
// modified so callers can persist the result before committing it.
func (s CounterState) Incremented(amount int64, updater string, now time.Time) CounterState {
	next := s.Clone()
	next.Value += amount
	next.TotalIncrements += amount
	next.LastUpdated = now.UnixMilli()
	next.LastUpdater = updaterPtr(updater)
	return next
}

// Decremented returns the state after subtracting amount. Values below
// zero are allowed.
func (s CounterState) Decremented(amount int64, updater string, now time.Time) CounterState {
	next := s.Clone()
	next.Value -= amount
	next.TotalDecrements += amount
	next.LastUpdated = now.UnixMilli()
	next.LastUpdater = updaterPtr(updater)
	return next
}

func updaterPtr(label string) *string {
	if label == "" {
		return nil
	}
	return &label
}

// ValidateAmount checks that n lies in [MinAmount, MaxAmount].
func ValidateAmount(n int64) error {
	if n < MinAmount || n > MaxAmount {
		return errAmountRange()
	}
	return nil
}

func errAmountRange() error {
	return ErrInvalidAmount.WithDetails(
		fmt.Sprintf("amount must be between %d and %d", MinAmount, MaxAmount))
}

// ParseAmount converts a decoded JSON number into a validated amount.
// A nil value yields DefaultAmount.
func ParseAmount(v *float64) (int64, error) {
	if v == nil {
		return DefaultAmount, nil
	}
	f := *v
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, ErrInvalidAmount.WithDetails("amount must be an integer")
	}
	if f < float64(MinAmount) || f > float64(MaxAmount) {
		return 0, errAmountRange()
	}
	return int64(f), nil
}

// ValidateCounterName checks a user supplied counter name.
func ValidateCounterName(name string) error {
	if !counterNamePattern.MatchString(name) {
		return ErrInvalidCounterName.WithDetails("name must match " + counterNamePattern.String())
	}
	return nil
}
