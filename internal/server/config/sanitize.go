// Package config defines the server configuration structure.
package config

import "github.com/yndnr/tallymesh/internal/telemetry/logger"

// Sanitize returns a copy of the config with sensitive fields masked.
//
// This is used for logging configuration without exposing secrets.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg
	if sanitized.Storage.Postgres.DSN != "" {
		sanitized.Storage.Postgres.DSN = logger.RedactDSN(sanitized.Storage.Postgres.DSN)
	}
	return &sanitized
}
