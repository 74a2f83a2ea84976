// Package command provides the tallymesh-cli command tree, built on
// urfave/cli/v2:
//
//   - root.go: App, global flags and the per-run Env
//   - counter.go: counter get/increment/decrement
//   - presence.go: presence get
//   - watch.go: live counter and connection updates over WebSocket
//   - misc.go: health, version and config
//
// Commands write to App.Writer in the format chosen by --output.
package command
