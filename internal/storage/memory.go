package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore keeps encoded values in a map. Values round-trip through
// JSON so callers observe the same semantics as BoltStore.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, key string, v any) error {
	s.mu.RLock()
	raw, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decoding %q: %w", key, err)
	}
	return nil
}

func (s *MemoryStore) Put(_ context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %q: %w", key, err)
	}
	s.mu.Lock()
	s.data[key] = data
	s.mu.Unlock()
	return nil
}

// PutRaw stores bytes verbatim. Tests use it to plant corrupt documents.
func (s *MemoryStore) PutRaw(key string, raw []byte) {
	s.mu.Lock()
	s.data[key] = raw
	s.mu.Unlock()
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// Open returns a BoltStore for a non-empty path and a MemoryStore otherwise.
func Open(path string) (Store, error) {
	if path == "" {
		return NewMemoryStore(), nil
	}
	return OpenBolt(path)
}
