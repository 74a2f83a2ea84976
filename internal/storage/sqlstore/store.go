package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/yndnr/tallymesh/internal/core/domain"
	"github.com/yndnr/tallymesh/internal/storage"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS counter_state (
		name             TEXT PRIMARY KEY,
		value            BIGINT NOT NULL DEFAULT 0,
		last_updated     BIGINT NOT NULL,
		total_increments BIGINT NOT NULL DEFAULT 0,
		total_decrements BIGINT NOT NULL DEFAULT 0,
		last_updater     TEXT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS counter_alarm (
		name    TEXT PRIMARY KEY,
		fire_at BIGINT NOT NULL
	)`,
}

type counterRow struct {
	Name            string         `db:"name"`
	Value           int64          `db:"value"`
	LastUpdated     int64          `db:"last_updated"`
	TotalIncrements int64          `db:"total_increments"`
	TotalDecrements int64          `db:"total_decrements"`
	LastUpdater     sql.NullString `db:"last_updater"`
}

func (r counterRow) state() domain.CounterState {
	st := domain.CounterState{
		Value:           r.Value,
		LastUpdated:     r.LastUpdated,
		TotalIncrements: r.TotalIncrements,
		TotalDecrements: r.TotalDecrements,
	}
	if r.LastUpdater.Valid {
		u := r.LastUpdater.String
		st.LastUpdater = &u
	}
	return st
}

func rowFor(name string, st domain.CounterState) counterRow {
	r := counterRow{
		Name:            name,
		Value:           st.Value,
		LastUpdated:     st.LastUpdated,
		TotalIncrements: st.TotalIncrements,
		TotalDecrements: st.TotalDecrements,
	}
	if st.LastUpdater != nil {
		r.LastUpdater = sql.NullString{String: *st.LastUpdater, Valid: true}
	}
	return r
}

// Store implements the counter store on PostgreSQL.
type Store struct {
	db *sqlx.DB
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string, maxOpenConns int) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: connect: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	return New(db), nil
}

// New wraps an existing handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlstore: migration %d: %w", i+1, err)
		}
	}
	return nil
}

// Ensure inserts initial unless a row for name exists.
func (s *Store) Ensure(ctx context.Context, name string, initial domain.CounterState) (bool, error) {
	res, err := s.db.NamedExecContext(ctx, `
		INSERT INTO counter_state (name, value, last_updated, total_increments, total_decrements, last_updater)
		VALUES (:name, :value, :last_updated, :total_increments, :total_decrements, :last_updater)
		ON CONFLICT (name) DO NOTHING`, rowFor(name, initial))
	if err != nil {
		return false, fmt.Errorf("ensure counter %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ensure counter %q: %w", name, err)
	}
	return n == 1, nil
}

// Load reads the row for name.
func (s *Store) Load(ctx context.Context, name string) (domain.CounterState, error) {
	var r counterRow
	err := s.db.GetContext(ctx, &r, `
		SELECT name, value, last_updated, total_increments, total_decrements, last_updater
		FROM counter_state
		WHERE name = $1`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CounterState{}, fmt.Errorf("load counter %q: %w", name, storage.ErrKeyNotFound)
	}
	if err != nil {
		return domain.CounterState{}, fmt.Errorf("load counter %q: %w", name, err)
	}
	return r.state(), nil
}

// Save upserts the row for name.
func (s *Store) Save(ctx context.Context, name string, st domain.CounterState) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO counter_state (name, value, last_updated, total_increments, total_decrements, last_updater)
		VALUES (:name, :value, :last_updated, :total_increments, :total_decrements, :last_updater)
		ON CONFLICT (name) DO UPDATE SET
			value = EXCLUDED.value,
			last_updated = EXCLUDED.last_updated,
			total_increments = EXCLUDED.total_increments,
			total_decrements = EXCLUDED.total_decrements,
			last_updater = EXCLUDED.last_updater`, rowFor(name, st))
	if err != nil {
		return fmt.Errorf("save counter %q: %w", name, err)
	}
	return nil
}

// Alarm returns the stored alarm time, or zero if none.
func (s *Store) Alarm(ctx context.Context, name string) (time.Time, error) {
	var ms int64
	err := s.db.GetContext(ctx, &ms, `SELECT fire_at FROM counter_alarm WHERE name = $1`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("load alarm %q: %w", name, err)
	}
	return time.UnixMilli(ms), nil
}

// SetAlarm upserts the alarm time for name.
func (s *Store) SetAlarm(ctx context.Context, name string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO counter_alarm (name, fire_at) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET fire_at = EXCLUDED.fire_at`, name, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("save alarm %q: %w", name, err)
	}
	return nil
}

// Names lists every stored counter.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	var names []string
	if err := s.db.SelectContext(ctx, &names, `SELECT name FROM counter_state ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list counters: %w", err)
	}
	return names, nil
}

// Ping checks connectivity; used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Collector exports connection pool statistics.
func (s *Store) Collector() prometheus.Collector {
	return collectors.NewDBStatsCollector(s.db.DB, "counters")
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
