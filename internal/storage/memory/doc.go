// Package memory provides an in-process KV engine.
//
// Data lives only as long as the process. It backs the "memory" storage
// driver and the unit tests of packages that need a KVEngine.
package memory
