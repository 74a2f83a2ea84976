package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/yndnr/tallymesh/internal/storage"
)

// Store is a map-backed storage.KVEngine.
type Store struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

var _ storage.KVEngine = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Get retrieves a copy of the value stored under key.
func (s *Store) Get(_ context.Context, key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.ErrClosed
	}
	v, ok := s.data[string(key)]
	if !ok {
		return nil, storage.ErrKeyNotFound
	}
	return clone(v), nil
}

// Set stores a copy of value under key.
func (s *Store) Set(_ context.Context, key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrClosed
	}
	s.data[string(key)] = clone(value)
	return nil
}

// SetIfAbsent stores value only if key is missing.
func (s *Store) SetIfAbsent(_ context.Context, key, value []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, storage.ErrClosed
	}
	if _, ok := s.data[string(key)]; ok {
		return false, nil
	}
	s.data[string(key)] = clone(value)
	return true, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(_ context.Context, key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrClosed
	}
	delete(s.data, string(key))
	return nil
}

// Scan visits keys with prefix in lexical order.
func (s *Store) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return storage.ErrClosed
	}
	p := string(prefix)
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if strings.HasPrefix(k, p) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = clone(s.data[k])
	}
	s.mu.RUnlock()

	for i, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fn([]byte(k), values[i]) {
			break
		}
	}
	return nil
}

// GC is a no-op.
func (s *Store) GC(context.Context) (uint64, error) { return 0, nil }

// Stats reports the key count and the summed value sizes.
func (s *Store) Stats(context.Context) (*storage.KVStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var size uint64
	for k, v := range s.data {
		size += uint64(len(k) + len(v))
	}
	return &storage.KVStats{TotalKeys: uint64(len(s.data)), TotalSize: size}, nil
}

// Close marks the store closed; later calls fail with storage.ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
