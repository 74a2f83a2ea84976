// Package config defines the server configuration structure.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

// Verify validates the configuration and returns the first violation.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifyActor(&cfg.Actor); err != nil {
		return err
	}
	if err := verifyTransport(&cfg.Transport); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func verifyServer(cfg *ServerSection) error {
	if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
		return fmt.Errorf("server.http.addr %q is invalid: %w", cfg.HTTP.Addr, err)
	}
	if (cfg.HTTP.TLSCertFile == "") != (cfg.HTTP.TLSKeyFile == "") {
		return errors.New("server.http.tls_cert_file and tls_key_file must be set together")
	}
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.RPS <= 0 {
			return errors.New("server.rate_limit.rps must be positive")
		}
		if cfg.RateLimit.Burst < 1 {
			return errors.New("server.rate_limit.burst must be at least 1")
		}
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	switch cfg.Driver {
	case DriverBadger:
		if cfg.DataDir == "" {
			return errors.New("storage.data_dir is required")
		}
		// Check if data directory exists or can be created
		if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
			return errors.New("cannot create data directory: " + err.Error())
		}
		if cfg.Badger.GCThreshold <= 0 || cfg.Badger.GCThreshold >= 1 {
			return errors.New("storage.badger.gc_threshold must be between 0 and 1")
		}
	case DriverPostgres:
		if cfg.Postgres.DSN == "" {
			return errors.New("storage.postgres.dsn is required")
		}
		if cfg.Postgres.MaxOpenConns < 1 {
			return errors.New("storage.postgres.max_open_conns must be at least 1")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("storage.driver %q is not one of badger, postgres, memory", cfg.Driver)
	}
	return nil
}

func verifyActor(cfg *ActorSection) error {
	if cfg.IdleTimeout <= 0 {
		return errors.New("actor.idle_timeout must be positive")
	}
	if cfg.MaintenanceInterval <= 0 {
		return errors.New("actor.maintenance_interval must be positive")
	}
	if cfg.CallTimeout <= 0 {
		return errors.New("actor.call_timeout must be positive")
	}
	if cfg.StoreTimeout <= 0 {
		return errors.New("actor.store_timeout must be positive")
	}
	return nil
}

func verifyTransport(cfg *TransportSection) error {
	if cfg.MaxConnections < 1 {
		return errors.New("transport.max_connections must be at least 1")
	}
	if cfg.SettleDelay < 0 {
		return errors.New("transport.settle_delay must not be negative")
	}
	if cfg.PingPeriod >= cfg.PongWait {
		return errors.New("transport.ping_period must be shorter than transport.pong_wait")
	}
	if cfg.MaxMessageSize < 16 {
		return errors.New("transport.max_message_size must be at least 16")
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	switch strings.ToLower(cfg.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q is invalid", cfg.Level)
	}
	switch strings.ToLower(cfg.Format) {
	case "json", "text", "console":
	default:
		return fmt.Errorf("log.format %q is invalid", cfg.Format)
	}
	return nil
}
