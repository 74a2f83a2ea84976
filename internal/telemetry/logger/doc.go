// Package logger provides structured logging for TallyMesh.
//
// The package wraps log/slog:
//
//   - logger.go: handler construction, global level, package-level helpers
//   - context.go: logger and request ID propagation through context.Context
//   - redact.go: masking of credentials and connection strings
//
// The level is held in a shared slog.LevelVar so it can be changed at
// runtime, for example when the configuration file is reloaded.
package logger
