// Package queue: Redis backend.
//
// Redis lists give the per-key FIFO directly: RPUSH appends to the tail,
// LPOP takes the head, LPUSH re-inserts at the head for retries. All three
// are atomic server-side.
package queue

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps pending records in Redis lists, one list per key. It is
// the production backend: records survive process restarts of this service
// (though not of Redis itself).
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing Redis client. The caller owns the client's
// lifecycle.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Push appends payload to the tail of the list named key.
func (s *RedisStore) Push(ctx context.Context, key string, payload []byte) error {
	return s.client.RPush(ctx, key, payload).Err()
}

// Pop removes and returns the head of the list named key, or ErrEmpty.
func (s *RedisStore) Pop(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.LPop(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Unpop re-inserts payload at the head of the list named key.
func (s *RedisStore) Unpop(ctx context.Context, key string, payload []byte) error {
	return s.client.LPush(ctx, key, payload).Err()
}
