// Package config defines the server configuration structure.
package config

import "time"

// Default configuration values.
const (
	DefaultHTTPAddr        = "127.0.0.1:5080"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultRateLimitRPS   = 50
	DefaultRateLimitBurst = 100

	DefaultStorageDriver    = DriverBadger
	DefaultDataDir          = "/var/lib/tallymesh-server/data"
	DefaultBadgerGCInterval = 10 * time.Minute
	DefaultBadgerGCRatio    = 0.5
	DefaultValueLogFileSize = 256 << 20
	DefaultPostgresMaxConns = 10

	DefaultActorIdleTimeout    = 30 * time.Second
	DefaultMaintenanceInterval = 24 * time.Hour
	DefaultCallTimeout         = 5 * time.Second
	DefaultStoreTimeout        = 10 * time.Second
	DefaultAlarmTick           = time.Second

	DefaultMaxConnections   = 32768
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultSettleDelay      = 10 * time.Millisecond
	DefaultWriteWait        = 10 * time.Second
	DefaultPongWait         = 60 * time.Second
	DefaultPingPeriod       = 54 * time.Second
	DefaultMaxMessageSize   = 4096
	DefaultSendBuffer       = 256

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr:            DefaultHTTPAddr,
				ReadTimeout:     DefaultReadTimeout,
				WriteTimeout:    DefaultWriteTimeout,
				IdleTimeout:     DefaultIdleTimeout,
				ShutdownTimeout: DefaultShutdownTimeout,
			},
			RateLimit: RateLimitConfig{
				Enabled: false,
				RPS:     DefaultRateLimitRPS,
				Burst:   DefaultRateLimitBurst,
			},
		},
		Storage: StorageSection{
			Driver:  DefaultStorageDriver,
			DataDir: DefaultDataDir,
			Badger: BadgerConfig{
				GCInterval:       DefaultBadgerGCInterval,
				GCThreshold:      DefaultBadgerGCRatio,
				ValueLogFileSize: DefaultValueLogFileSize,
				SyncWrites:       true,
			},
			Postgres: PostgresConfig{
				MaxOpenConns: DefaultPostgresMaxConns,
			},
		},
		Actor: ActorSection{
			IdleTimeout:         DefaultActorIdleTimeout,
			MaintenanceInterval: DefaultMaintenanceInterval,
			CallTimeout:         DefaultCallTimeout,
			StoreTimeout:        DefaultStoreTimeout,
			AlarmTick:           DefaultAlarmTick,
		},
		Transport: TransportSection{
			MaxConnections:   DefaultMaxConnections,
			HandshakeTimeout: DefaultHandshakeTimeout,
			SettleDelay:      DefaultSettleDelay,
			WriteWait:        DefaultWriteWait,
			PongWait:         DefaultPongWait,
			PingPeriod:       DefaultPingPeriod,
			MaxMessageSize:   DefaultMaxMessageSize,
			SendBuffer:       DefaultSendBuffer,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
