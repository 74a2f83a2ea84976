// Package transport hosts WebSocket connections independently of the
// actors that serve them.
//
// Sockets are owned by a process-level Registry keyed by actor name, so
// an actor can be passivated while its clients stay connected. Each
// socket carries a set of topic tags; broadcasts address the OPEN
// sockets of one actor that carry a given tag.
//
//   - acceptor.go: handshake validation, admission control, upgrade
//   - socket.go: per-connection state machine and read/write pumps
//   - registry.go: sockets by actor name
//   - broadcast.go: fire-and-forget fan-out
//
// Socket events are delivered to a Handler. A close event is delivered
// only after the socket has left the registry, so a recount performed
// by the handler never includes the closing socket.
package transport
