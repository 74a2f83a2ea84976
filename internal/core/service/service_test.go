package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/tallymesh/internal/core/actor"
	"github.com/yndnr/tallymesh/internal/core/domain"
	"github.com/yndnr/tallymesh/internal/storage"
	"github.com/yndnr/tallymesh/internal/storage/memory"
	"github.com/yndnr/tallymesh/internal/transport"
)

type fixture struct {
	store    *storage.CounterStore
	alarms   *actor.Scheduler
	counters *CounterService
	presence *PresenceService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := storage.NewCounterStore(memory.New())
	reg := transport.NewRegistry()
	alarms := actor.NewScheduler(time.Hour, nil)

	cns := actor.NewNamespace(actor.KindCounter, actor.NewCounterFactory(&actor.CounterEnv{
		Store:   store,
		Sockets: reg,
		Alarms:  alarms,
	}), actor.NamespaceOptions{})
	pns := actor.NewNamespace(actor.KindPresence, actor.NewPresenceFactory(&actor.PresenceEnv{
		Sockets: reg,
	}), actor.NamespaceOptions{})
	t.Cleanup(func() {
		cns.Close()
		pns.Close()
	})

	return &fixture{
		store:    store,
		alarms:   alarms,
		counters: NewCounterService(cns, time.Second, nil),
		presence: NewPresenceService(pns, time.Second),
	}
}

func TestCounterService_Operations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, err := f.counters.Get(ctx, domain.GlobalCounterName)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if st.Value != 0 || st.LastUpdater != nil {
		t.Errorf("fresh counter = %+v", st)
	}

	if st, err = f.counters.Increment(ctx, domain.GlobalCounterName, 5, "alice"); err != nil {
		t.Fatal(err)
	}
	if st.Value != 5 || st.TotalIncrements != 5 || *st.LastUpdater != "alice" {
		t.Errorf("after increment = %+v", st)
	}

	if st, err = f.counters.Decrement(ctx, domain.GlobalCounterName, 7, "bob"); err != nil {
		t.Fatal(err)
	}
	if st.Value != -2 || st.TotalIncrements != 5 || st.TotalDecrements != 7 {
		t.Errorf("after decrement = %+v", st)
	}

	persisted, err := f.store.Load(ctx, domain.GlobalCounterName)
	if err != nil {
		t.Fatal(err)
	}
	if persisted.Value != -2 || persisted.TotalDecrements != 7 || *persisted.LastUpdater != "bob" {
		t.Errorf("persisted = %+v", persisted)
	}
}

func TestCounterService_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		counter string
		amount  int64
		want    error
	}{
		{"zero amount", "c1", 0, domain.ErrInvalidAmount},
		{"amount above max", "c1", 1001, domain.ErrInvalidAmount},
		{"name with slash", "a/b", 1, domain.ErrInvalidCounterName},
		{"empty name", "", 1, domain.ErrInvalidCounterName},
		{"name too long", string(make([]byte, 65)), 1, domain.ErrInvalidCounterName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.counters.Increment(ctx, tt.counter, tt.amount, "")
			if !errors.Is(err, tt.want) {
				t.Errorf("Increment() error = %v, want %v", err, tt.want)
			}
		})
	}

	if names, _ := f.store.Names(ctx); len(names) != 0 {
		t.Errorf("rejected calls created rows: %v", names)
	}
}

func TestCounterService_ConcurrentNamedCounters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, name := range []string{"a", "b", "c"} {
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := f.counters.Increment(ctx, name, 2, ""); err != nil {
					t.Error(err)
				}
			}()
		}
	}
	wg.Wait()

	for _, name := range []string{"a", "b", "c"} {
		st, err := f.counters.Get(ctx, name)
		if err != nil {
			t.Fatal(err)
		}
		if st.Value != 100 {
			t.Errorf("%s value = %d, want 100", name, st.Value)
		}
	}
}

func TestCounterService_RestoreAlarms(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	at := time.Now().Add(time.Hour).Truncate(time.Millisecond)
	if _, err := f.store.Ensure(ctx, "stored", domain.NewCounterState(time.Now())); err != nil {
		t.Fatal(err)
	}
	if err := f.store.SetAlarm(ctx, "stored", at); err != nil {
		t.Fatal(err)
	}
	if _, err := f.store.Ensure(ctx, "no-alarm", domain.NewCounterState(time.Now())); err != nil {
		t.Fatal(err)
	}

	armed, err := f.counters.RestoreAlarms(ctx, f.store, f.alarms)
	if err != nil {
		t.Fatalf("RestoreAlarms() error = %v", err)
	}
	if armed != 1 {
		t.Errorf("armed = %d, want 1", armed)
	}
	got, ok := f.alarms.Armed("stored")
	if !ok || !got.Equal(at) {
		t.Errorf("Armed(stored) = %v, %v; want %v", got, ok, at)
	}
	if _, ok := f.alarms.Armed("no-alarm"); ok {
		t.Error("counter without a stored alarm was armed")
	}
}

func TestCounterService_Alarm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.counters.Get(ctx, "maint"); err != nil {
		t.Fatal(err)
	}
	if err := f.store.SetAlarm(ctx, "maint", time.UnixMilli(1)); err != nil {
		t.Fatal(err)
	}

	f.counters.Alarm(ctx, "maint")

	after, err := f.store.Alarm(ctx, "maint")
	if err != nil {
		t.Fatal(err)
	}
	if after.Before(time.Now().Add(23 * time.Hour)) {
		t.Errorf("alarm not rescheduled a maintenance interval ahead: %v", after)
	}
	if _, ok := f.alarms.Armed("maint"); !ok {
		t.Error("scheduler not rearmed")
	}
}

func TestPresenceService_Count(t *testing.T) {
	f := newFixture(t)

	n, err := f.presence.Count(context.Background(), domain.GlobalPresenceName)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 0 {
		t.Errorf("Count() = %d, want 0", n)
	}
}
