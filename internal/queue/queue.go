// Package queue implements the pending write queue: a durable FIFO per
// logical key that carries serialized pending records from the allocation
// path to the ingestion workers.
//
// The queue is a transport and buffer only, never a system of record. FIFO
// order is guaranteed per key; there is no ordering guarantee across keys.
// Losing a queue before it drains means the associated numbers were
// allocated but never persisted, which the design accepts as a bounded
// inconsistency.
package queue

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmpty is returned by Pop when the named queue has no pending records.
// It is a signal, not a failure: worker runs treat it as an idempotent no-op.
var ErrEmpty = errors.New("queue is empty")

// Store is the injected queue capability. Implementations must be safe for
// concurrent producers and consumers on the same key.
type Store interface {
	// Push appends payload to the tail of the FIFO named key.
	Push(ctx context.Context, key string, payload []byte) error

	// Pop removes and returns the head of the FIFO named key. It returns
	// ErrEmpty when there is nothing pending.
	Pop(ctx context.Context, key string) ([]byte, error)

	// Unpop puts payload back at the head of the FIFO named key, so a retried
	// worker run sees it first and per-key FIFO order is preserved.
	Unpop(ctx context.Context, key string, payload []byte) error
}

// ChatKey returns the queue key holding an application's pending chats.
func ChatKey(appToken string) string {
	return fmt.Sprintf("app:%s:chats", appToken)
}

// MessageKey returns the queue key holding a chat's pending messages.
func MessageKey(chatID string) string {
	return fmt.Sprintf("chat:%s:messages", chatID)
}
