package counter

import (
	"context"
	"sync"
)

// MemoryStore is a process-local Store for tests and single-process
// deployments. It holds one int64 per key behind a mutex.
//
// Like the in-memory rate limiter in the HTTP layer, this is process-local
// only: horizontally scaled deployments need the Redis backend to keep
// sequences global.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]int64
}

// NewMemoryStore returns an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]int64)}
}

// Next increments the counter named key and returns the new value.
func (s *MemoryStore) Next(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key]++
	return s.values[key], nil
}

// Peek returns the current value for key, 0 when unseen.
func (s *MemoryStore) Peek(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key], nil
}
