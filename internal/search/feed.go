// Package search: persistence feed.
//
// The ingestion worker does not index messages itself: it emits a
// persistence-completed notification and moves on. Feed is the receiving
// end: a buffered channel drained by a single goroutine into the index.
// Delivery is best-effort by contract; when the buffer is full the event is
// dropped and the message simply stays unindexed until the next rebuild.
package search

import (
	"context"

	"github.com/tbourn/go-chat-journal/internal/domain"
)

// Feed decouples message persistence from indexing. It satisfies the
// ingestion worker's notifier contract.
type Feed struct {
	ix *Index
	ch chan *domain.Message
}

// NewFeed wraps the index with a notification buffer of the given size
// (minimum 1).
func NewFeed(ix *Index, buffer int) *Feed {
	if buffer < 1 {
		buffer = 1
	}
	return &Feed{ix: ix, ch: make(chan *domain.Message, buffer)}
}

// MessagePersisted enqueues a persisted message for indexing without
// blocking the worker. Events that do not fit in the buffer are dropped.
func (f *Feed) MessagePersisted(msg *domain.Message) {
	select {
	case f.ch <- msg:
	default:
	}
}

// Run drains notifications into the index until ctx is cancelled.
func (f *Feed) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-f.ch:
			f.ix.Add(msg.ChatID, msg.Number, msg.Body)
		}
	}
}
