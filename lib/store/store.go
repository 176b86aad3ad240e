package store

import (
	"sync"
)

// NewMemStore creates a new in-memory store instance.
// Keys grow without bound: there is no eviction and no TTL.
func NewMemStore() Store {
	return &memStore{
		data: make(map[string]string),
	}
}

// memStore is a map guarded by a single mutual-exclusion boundary. Concurrent
// writers never interleave a partial update and a reader never observes a
// half-written value.
type memStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// --------------------------------------------------------------------------
// Interface Methods (docu see interface.go)
// --------------------------------------------------------------------------

func (s *memStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

func (s *memStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, found := s.data[key]
	return value, found
}

func (s *memStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *memStore) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := make(map[string]string, len(s.data))
	for k, v := range s.data {
		snapshot[k] = v
	}
	return snapshot
}
