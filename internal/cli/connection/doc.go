// Package connection provides the client side of TallyMesh.
//
//   - http.go: counter and presence HTTP client
//   - socket.go: reconnecting WebSocket with keepalive and frame callbacks
//   - group.go: aggregate state over several sockets
package connection
