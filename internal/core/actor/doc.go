// Package actor hosts the single-writer actors behind TallyMesh.
//
// Every logical name maps to at most one live instance inside a
// Namespace. An instance runs its calls one at a time on a mailbox
// goroutine, so mutations against one name are linearizable without
// locks. Idle instances are passivated; sockets stay in the transport
// registry and the next event activates a fresh instance that restores
// its state lazily from storage.
//
// Two actor kinds exist:
//
//   - Counter: durable state, persisted before every acknowledgement.
//   - Presence: no state of its own, counts tagged sockets.
package actor
