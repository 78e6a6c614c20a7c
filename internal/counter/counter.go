// Package counter implements the atomic counter service that issues the
// per-application chat numbers and per-chat message numbers.
//
// Contract:
//   - Next(key) returns a value strictly greater than any previous return for
//     the same key; the first call for an unseen key returns 1. Concurrent
//     callers for the same key never observe the same value.
//   - Peek(key) reads the current value without advancing it (0 for unseen
//     keys). Only the reconciliation sweeper uses it.
//
// The counter is coordination state, not a system of record: rows in the
// relational store are the source of truth for existence, the counter only
// for numbering.
package counter

import (
	"context"
	"fmt"
)

// Store is the injected counter capability. Implementations must be safe for
// arbitrary concurrent callers on the same key.
type Store interface {
	// Next atomically increments the counter named key and returns the new
	// value. Unseen keys start at 0, so the first Next returns 1.
	Next(ctx context.Context, key string) (int64, error)

	// Peek returns the current counter value without advancing it. Unseen
	// keys read as 0.
	Peek(ctx context.Context, key string) (int64, error)
}

// ChatKey returns the counter key for an application's chat sequence.
func ChatKey(appToken string) string {
	return fmt.Sprintf("app:%s:chat_counter", appToken)
}

// MessageKey returns the counter key for a chat's message sequence.
func MessageKey(chatID string) string {
	return fmt.Sprintf("chat:%s:message_counter", chatID)
}
