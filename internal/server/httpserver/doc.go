// Package httpserver provides the HTTP/HTTPS server for TallyMesh.
//
// This package implements the external API using stdlib net/http:
//
//   - Counter endpoints: /api/counter/, /api/counters/{name}/
//   - Presence endpoints: /api/connection-counter/
//   - WebSocket upgrades under both
//   - Health endpoints: /health, /ready, /metrics
//
// Features:
//
//   - TLS with certificate reload (see tlsroots)
//   - Middleware chain: Recover, RequestID, CORS, RateLimit, Audit, Metrics
//   - Graceful shutdown with configurable timeout
package httpserver
