// Package main provides the entry point for tallymesh-server.
//
// tallymesh-server hosts named counters and the global connection
// counter. Each counter is served by one actor that owns its durable
// state and fans updates out to subscribed WebSocket clients.
//
// Usage:
//
//	tallymesh-server -config /etc/tallymesh/server.yaml
//	tallymesh-server -env-file .env
//	tallymesh-server -version
package main
