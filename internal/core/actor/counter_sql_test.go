package actor

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/yndnr/tallymesh/internal/core/domain"
	"github.com/yndnr/tallymesh/internal/storage/sqlstore"
	"github.com/yndnr/tallymesh/internal/telemetry/logger"
)

// cancelingStore cancels the caller's context right before each save
// reaches the database.
type cancelingStore struct {
	*sqlstore.Store
	cancel context.CancelFunc
}

func (s cancelingStore) Save(ctx context.Context, name string, st domain.CounterState) error {
	s.cancel()
	return s.Store.Save(ctx, name, st)
}

func TestCounter_PostgresSaveIgnoresCallerCancel(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec(`INSERT INTO counter_state .* ON CONFLICT \(name\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT .* FROM counter_state").
		WithArgs(testCounter).
		WillReturnRows(sqlmock.NewRows([]string{"name", "value", "last_updated", "total_increments", "total_decrements", "last_updater"}).
			AddRow(testCounter, 0, 1000, 0, 0, nil))
	mock.ExpectQuery("SELECT fire_at FROM counter_alarm").
		WithArgs(testCounter).
		WillReturnRows(sqlmock.NewRows([]string{"fire_at"}))
	mock.ExpectExec("INSERT INTO counter_alarm").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO counter_state .* ON CONFLICT \(name\) DO UPDATE`).
		WithArgs(testCounter, int64(4), sqlmock.AnyArg(), int64(4), int64(0), "alice").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := NewCounter(testCounter, &CounterEnv{
		Store:        cancelingStore{Store: sqlstore.New(sqlx.NewDb(db, "postgres")), cancel: cancel},
		Sockets:      &fakeSockets{},
		Alarms:       newFakeAlarms(),
		Logger:       logger.Discard(),
		StoreTimeout: time.Second,
	})
	t.Cleanup(c.stop)

	st, err := c.Increment(ctx, 4, "alice")
	if err != nil {
		t.Fatalf("Increment() error = %v", err)
	}
	if st.Value != 4 || st.TotalIncrements != 4 {
		t.Errorf("Increment() = %+v", st)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
