// Package cmap provides a concurrent-safe sharded map with string keys.
//
// Keys are distributed over a power-of-two number of shards by their
// murmur3 hash, each guarded by its own RWMutex. Compute and View run a
// callback under the shard lock, which lets callers keep small
// per-key collections consistent without a second lock.
package cmap
