// Package tlsroots provides TLS material for the server and the CLI.
//
//   - roots.go: client trust pool (system roots plus an optional CA file)
//   - reloader.go: server key pair that is reloaded when its files change
package tlsroots
