// Package domain defines the core persistence models for the application.
// This file holds the pending-record payloads that travel through the write
// queue between allocation and ingestion. Pending records are transport
// state, not rows: they exist only between the moment a sequence number is
// issued and the moment a worker persists it.
package domain

// PendingChat is the queued payload for a chat whose number has been
// allocated but not yet persisted.
type PendingChat struct {
	ApplicationID string `json:"application_id"`
	Number        int64  `json:"number"`
}

// PendingMessage is the queued payload for a message whose number has been
// allocated but not yet persisted.
type PendingMessage struct {
	ChatID string `json:"chat_id"`
	Number int64  `json:"number"`
	Body   string `json:"body"`
}
