// Package handler provides HTTP request handlers for TallyMesh.
//
// Counter routes:
//
//   - GET  /api/counter/                 current state of global-counter
//   - POST /api/counter/increment        body {"amount"?: int}
//   - POST /api/counter/decrement
//   - GET  /api/counter/websocket        socket upgrade
//   - /api/counters/{name}/...           the same for a named counter
//
// Presence routes:
//
//   - GET /api/connection-counter/           {"count": N}
//   - GET /api/connection-counter/websocket  socket upgrade
//
// Successful counter responses are the bare CounterState. Errors use
// the envelope in ErrorResponse.
package handler
