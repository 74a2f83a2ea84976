// Package config defines the server configuration structure.
package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Check server defaults
	if cfg.Server.HTTP.Addr != DefaultHTTPAddr {
		t.Errorf("HTTP.Addr = %q, want %q", cfg.Server.HTTP.Addr, DefaultHTTPAddr)
	}
	if cfg.Server.RateLimit.Enabled {
		t.Error("rate limiting should be disabled by default")
	}

	// Check storage defaults
	if cfg.Storage.Driver != DriverBadger {
		t.Errorf("Driver = %q, want %q", cfg.Storage.Driver, DriverBadger)
	}
	if cfg.Storage.DataDir != DefaultDataDir {
		t.Errorf("DataDir = %q, want %q", cfg.Storage.DataDir, DefaultDataDir)
	}
	if !cfg.Storage.Badger.SyncWrites {
		t.Error("badger writes should be synchronous by default")
	}

	// Check actor and transport defaults
	if cfg.Actor.IdleTimeout != 30*time.Second {
		t.Errorf("Actor.IdleTimeout = %v", cfg.Actor.IdleTimeout)
	}
	if cfg.Actor.MaintenanceInterval != 24*time.Hour {
		t.Errorf("Actor.MaintenanceInterval = %v", cfg.Actor.MaintenanceInterval)
	}
	if cfg.Actor.StoreTimeout != 10*time.Second {
		t.Errorf("Actor.StoreTimeout = %v", cfg.Actor.StoreTimeout)
	}
	if cfg.Transport.MaxConnections != 32768 {
		t.Errorf("Transport.MaxConnections = %d", cfg.Transport.MaxConnections)
	}
	if cfg.Transport.HandshakeTimeout != 10*time.Second {
		t.Errorf("Transport.HandshakeTimeout = %v", cfg.Transport.HandshakeTimeout)
	}
	if cfg.Transport.SettleDelay != 10*time.Millisecond {
		t.Errorf("Transport.SettleDelay = %v", cfg.Transport.SettleDelay)
	}

	// Check log defaults
	if cfg.Log.Level != DefaultLogLevel {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, DefaultLogLevel)
	}
	if cfg.Log.Format != DefaultLogFormat {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, DefaultLogFormat)
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{"url", "postgres://app:hunter2@db:5432/tally", "postgres://app:xxxxx@db:5432/tally"},
		{"key value", "host=db user=app password=hunter2", "host=db user=app password=***REDACTED***"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Storage.Postgres.DSN = tt.dsn

			sanitized := Sanitize(cfg)

			if cfg.Storage.Postgres.DSN != tt.dsn {
				t.Error("Original config should not be modified")
			}
			if sanitized.Storage.Postgres.DSN != tt.want {
				t.Errorf("DSN = %q, want %q", sanitized.Storage.Postgres.DSN, tt.want)
			}
		})
	}
}

func validConfig(t *testing.T) *ServerConfig {
	t.Helper()
	cfg := Default()
	cfg.Storage.DataDir = t.TempDir()
	return cfg
}

func TestVerify_ValidConfig(t *testing.T) {
	if err := Verify(validConfig(t)); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
}

func TestVerify_Violations(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ServerConfig)
		wantErr string
	}{
		{"bad addr", func(c *ServerConfig) { c.Server.HTTP.Addr = "nope" }, "server.http.addr"},
		{"tls half set", func(c *ServerConfig) { c.Server.HTTP.TLSCertFile = "cert.pem" }, "tls_cert_file"},
		{"rate limit rps", func(c *ServerConfig) {
			c.Server.RateLimit.Enabled = true
			c.Server.RateLimit.RPS = 0
		}, "rate_limit.rps"},
		{"unknown driver", func(c *ServerConfig) { c.Storage.Driver = "sqlite" }, "storage.driver"},
		{"empty data dir", func(c *ServerConfig) { c.Storage.DataDir = "" }, "storage.data_dir"},
		{"gc threshold", func(c *ServerConfig) { c.Storage.Badger.GCThreshold = 1 }, "gc_threshold"},
		{"postgres without dsn", func(c *ServerConfig) { c.Storage.Driver = DriverPostgres }, "storage.postgres.dsn"},
		{"idle timeout", func(c *ServerConfig) { c.Actor.IdleTimeout = 0 }, "actor.idle_timeout"},
		{"store timeout", func(c *ServerConfig) { c.Actor.StoreTimeout = 0 }, "actor.store_timeout"},
		{"max connections", func(c *ServerConfig) { c.Transport.MaxConnections = 0 }, "transport.max_connections"},
		{"ping after pong", func(c *ServerConfig) { c.Transport.PingPeriod = c.Transport.PongWait }, "transport.ping_period"},
		{"negative settle", func(c *ServerConfig) { c.Transport.SettleDelay = -time.Millisecond }, "settle_delay"},
		{"log level", func(c *ServerConfig) { c.Log.Level = "loud" }, "log.level"},
		{"log format", func(c *ServerConfig) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := Verify(cfg)
			if err == nil {
				t.Fatal("Verify() should fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Verify() = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestVerify_MemoryDriverNeedsNoDataDir(t *testing.T) {
	cfg := Default()
	cfg.Storage.Driver = DriverMemory
	cfg.Storage.DataDir = ""

	if err := Verify(cfg); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
}

func TestVerify_CreateDataDir(t *testing.T) {
	cfg := validConfig(t)
	newDir := cfg.Storage.DataDir + "/subdir/data"
	cfg.Storage.DataDir = newDir

	if err := Verify(cfg); err != nil {
		t.Errorf("Verify failed: %v", err)
	}

	// Check directory was created
	if _, err := os.Stat(newDir); os.IsNotExist(err) {
		t.Error("Data directory should have been created")
	}
}
