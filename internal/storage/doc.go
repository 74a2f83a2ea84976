// Package storage provides durable storage for counter actors.
//
// Counter rows and maintenance alarms are kept in an embedded KV engine:
//
//   - kv.go: the KVEngine abstraction and its configuration
//   - badger.go: the Badger v3 engine (default driver)
//   - memory/: an in-process engine for tests and ephemeral deployments
//   - counter.go: CounterStore, the actor-facing store over any KVEngine
//   - sqlstore/: a PostgreSQL alternative to the KV-backed store
//
// A write is acknowledged only after the engine has accepted it; the actor
// commits state in memory only after the store returns nil.
package storage
