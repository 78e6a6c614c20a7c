package queue

import (
	"context"
	"sync"
)

// MemoryStore is a process-local Store for tests and single-process
// deployments: one slice per key behind a mutex. Payloads are copied on
// Push/Unpop so callers may reuse their buffers.
type MemoryStore struct {
	mu     sync.Mutex
	queues map[string][][]byte
}

// NewMemoryStore returns an empty in-memory queue store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{queues: make(map[string][][]byte)}
}

// Push appends payload to the tail of the queue named key.
func (s *MemoryStore) Push(ctx context.Context, key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[key] = append(s.queues[key], cloneBytes(payload))
	return nil
}

// Pop removes and returns the head of the queue named key, or ErrEmpty.
func (s *MemoryStore) Pop(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queues[key]
	if len(q) == 0 {
		return nil, ErrEmpty
	}
	head := q[0]
	s.queues[key] = q[1:]
	return head, nil
}

// Unpop re-inserts payload at the head of the queue named key.
func (s *MemoryStore) Unpop(ctx context.Context, key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[key] = append([][]byte{cloneBytes(payload)}, s.queues[key]...)
	return nil
}

// Len reports the number of pending records for key. Test helper.
func (s *MemoryStore) Len(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues[key])
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
