// Package domain defines the core domain models for TallyMesh.
//
// Domain models are pure values without IO dependencies:
//
//   - CounterState: the durable counter snapshot and its mutations
//   - Frames: the WebSocket wire protocol (inbound variants, outbound events)
//   - Identity: updater labels attached to mutations
//   - Errors: coded domain errors mapped to HTTP statuses at the edge
package domain
