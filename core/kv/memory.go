package kv

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps tables in process memory. It is the default backend for
// tests and for single-process use.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[Table]map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables: make(map[Table]map[string][]byte),
	}
}

func (s *MemoryStore) Get(ctx context.Context, table Table, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.tables[table][key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *MemoryStore) Set(ctx context.Context, table Table, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[table]
	if !ok {
		t = make(map[string][]byte)
		s.tables[table] = t
	}
	t[key] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, table Table, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tables[table], key)
	return nil
}

func (s *MemoryStore) Keys(ctx context.Context, table Table) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.tables[table]))
	for k := range s.tables[table] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) Close() error { return nil }
