// Package config defines the server configuration structure.
package config

import "time"

// ServerConfig is the root configuration for tallymesh-server.
type ServerConfig struct {
	Server    ServerSection    `koanf:"server"`
	Storage   StorageSection   `koanf:"storage"`
	Actor     ActorSection     `koanf:"actor"`
	Transport TransportSection `koanf:"transport"`
	Log       LogSection       `koanf:"log"`
}

// ServerSection configures the HTTP endpoint and its middleware.
type ServerSection struct {
	HTTP      HTTPConfig      `koanf:"http"`
	CORS      CORSConfig      `koanf:"cors"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	TLSCertFile     string        `koanf:"tls_cert_file"`
	TLSKeyFile      string        `koanf:"tls_key_file"`
}

// CORSConfig lists the origins allowed to call the API and open sockets.
// An empty list or "*" allows any origin.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// RateLimitConfig configures the per-client HTTP rate limit.
type RateLimitConfig struct {
	Enabled bool    `koanf:"enabled"`
	RPS     float64 `koanf:"rps"`
	Burst   int     `koanf:"burst"`
}

// Storage drivers.
const (
	DriverBadger   = "badger"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// StorageSection selects and configures the counter store.
type StorageSection struct {
	Driver   string         `koanf:"driver"`
	DataDir  string         `koanf:"data_dir"`
	Badger   BadgerConfig   `koanf:"badger"`
	Postgres PostgresConfig `koanf:"postgres"`
}

// BadgerConfig tunes the embedded engine.
type BadgerConfig struct {
	GCInterval       time.Duration `koanf:"gc_interval"`
	GCThreshold      float64       `koanf:"gc_threshold"`
	ValueLogFileSize int64         `koanf:"value_log_file_size"`
	SyncWrites       bool          `koanf:"sync_writes"`
}

// PostgresConfig configures the relational store.
type PostgresConfig struct {
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
}

// ActorSection configures actor hosting.
type ActorSection struct {
	// IdleTimeout passivates an actor that has seen no calls for this long.
	IdleTimeout time.Duration `koanf:"idle_timeout"`

	// MaintenanceInterval spaces the maintenance alarms of one counter.
	MaintenanceInterval time.Duration `koanf:"maintenance_interval"`

	// CallTimeout bounds one actor call made on behalf of a socket event
	// or an alarm.
	CallTimeout time.Duration `koanf:"call_timeout"`

	// StoreTimeout bounds the storage writes of an accepted mutation. It
	// is independent of the caller's deadline.
	StoreTimeout time.Duration `koanf:"store_timeout"`

	// AlarmTick is how often due alarms are collected. Values below one
	// second are rounded up.
	AlarmTick time.Duration `koanf:"alarm_tick"`
}

// TransportSection configures WebSocket handling.
type TransportSection struct {
	MaxConnections   int           `koanf:"max_connections"`
	HandshakeTimeout time.Duration `koanf:"handshake_timeout"`
	SettleDelay      time.Duration `koanf:"settle_delay"`
	WriteWait        time.Duration `koanf:"write_wait"`
	PongWait         time.Duration `koanf:"pong_wait"`
	PingPeriod       time.Duration `koanf:"ping_period"`
	MaxMessageSize   int64         `koanf:"max_message_size"`
	SendBuffer       int           `koanf:"send_buffer"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	// Audit logs every API request.
	Audit bool `koanf:"audit"`
}
