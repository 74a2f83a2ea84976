// Package service provides the entry points the HTTP layer and the
// scheduler use to reach actors.
//
//   - CounterService: validated counter reads and mutations by name
//   - PresenceService: connection counts by name
//
// Each call runs under the configured call timeout and is retried on a
// fresh instance when the previous one was passivated mid-call.
package service
