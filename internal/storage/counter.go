package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yndnr/tallymesh/internal/core/domain"
)

// Key layout:
//
//	counter/<name>/state  JSON domain.CounterState
//	counter/<name>/alarm  decimal epoch milliseconds
const counterPrefix = "counter/"

func stateKey(name string) []byte { return []byte(counterPrefix + name + "/state") }
func alarmKey(name string) []byte { return []byte(counterPrefix + name + "/alarm") }

// CounterStore persists counter rows and their maintenance alarms in a
// KVEngine.
type CounterStore struct {
	kv KVEngine
}

// NewCounterStore wraps kv.
func NewCounterStore(kv KVEngine) *CounterStore {
	return &CounterStore{kv: kv}
}

// Ensure writes initial for name unless a row already exists.
func (s *CounterStore) Ensure(ctx context.Context, name string, initial domain.CounterState) (bool, error) {
	raw, err := json.Marshal(initial)
	if err != nil {
		return false, fmt.Errorf("encode counter %q: %w", name, err)
	}
	created, err := s.kv.SetIfAbsent(ctx, stateKey(name), raw)
	if err != nil {
		return false, fmt.Errorf("ensure counter %q: %w", name, err)
	}
	return created, nil
}

// Load reads the row for name. A missing row returns ErrKeyNotFound.
func (s *CounterStore) Load(ctx context.Context, name string) (domain.CounterState, error) {
	raw, err := s.kv.Get(ctx, stateKey(name))
	if err != nil {
		return domain.CounterState{}, fmt.Errorf("load counter %q: %w", name, err)
	}
	var st domain.CounterState
	if err := json.Unmarshal(raw, &st); err != nil {
		return domain.CounterState{}, fmt.Errorf("decode counter %q: %w", name, err)
	}
	return st, nil
}

// Save overwrites the row for name.
func (s *CounterStore) Save(ctx context.Context, name string, st domain.CounterState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode counter %q: %w", name, err)
	}
	if err := s.kv.Set(ctx, stateKey(name), raw); err != nil {
		return fmt.Errorf("save counter %q: %w", name, err)
	}
	return nil
}

// Alarm returns the persisted alarm time, or the zero time if none is set.
func (s *CounterStore) Alarm(ctx context.Context, name string) (time.Time, error) {
	raw, err := s.kv.Get(ctx, alarmKey(name))
	if errors.Is(err, ErrKeyNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("load alarm %q: %w", name, err)
	}
	ms, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode alarm %q: %w", name, err)
	}
	return time.UnixMilli(ms), nil
}

// SetAlarm persists the next alarm time for name.
func (s *CounterStore) SetAlarm(ctx context.Context, name string, at time.Time) error {
	v := strconv.FormatInt(at.UnixMilli(), 10)
	if err := s.kv.Set(ctx, alarmKey(name), []byte(v)); err != nil {
		return fmt.Errorf("save alarm %q: %w", name, err)
	}
	return nil
}

// Names lists every counter that has a stored row.
func (s *CounterStore) Names(ctx context.Context) ([]string, error) {
	var names []string
	err := s.kv.Scan(ctx, []byte(counterPrefix), func(key, _ []byte) bool {
		if n, ok := strings.CutSuffix(strings.TrimPrefix(string(key), counterPrefix), "/state"); ok {
			names = append(names, n)
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("list counters: %w", err)
	}
	return names, nil
}

// Close closes the underlying engine.
func (s *CounterStore) Close() error {
	return s.kv.Close()
}
