package storage

import (
	"context"
	"sync"

	"github.com/bytedance/sonic"
)

// MemoryStore is an in-memory Store implementation. State is lost on
// restart, which is acceptable for tests and for the activity tracker.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string][]byte),
	}
}

// Get unmarshals the document stored under key into dest.
func (s *MemoryStore) Get(_ context.Context, key string, dest any) (bool, error) {
	s.mu.RLock()
	raw, ok := s.data[key]
	s.mu.RUnlock()

	if !ok {
		return false, nil
	}

	if err := sonic.Unmarshal(raw, dest); err != nil {
		return false, err
	}

	return true, nil
}

// Set stores value under key.
func (s *MemoryStore) Set(_ context.Context, key string, value any) error {
	raw, err := sonic.Marshal(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.data[key] = raw
	s.mu.Unlock()

	return nil
}

// Delete removes the document under key.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()

	return nil
}

// Keys returns all keys currently present in the store.
func (s *MemoryStore) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		keys = append(keys, key)
	}

	return keys, nil
}
