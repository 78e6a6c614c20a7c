// Package domain defines the persistence models for applications, chats, and
// messages. These types are mapped with GORM and form the core data layer of
// the chat journal.
package domain

import (
	"time"
)

// Application represents a client application that owns chats. Applications
// are identified externally by an opaque token generated at creation time;
// the token is never reused, even if the row is later removed.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Token: opaque 32-char hex handle exposed to clients; unique and indexed.
//   - Name: human-readable application name (required).
//   - ChatsCount: denormalized chat count, maintained by the ingestion worker
//     and corrected forward by the reconciliation sweeper. It reflects the
//     number of chat sequence values allocated, not necessarily the number of
//     chat rows that exist (see the sweeper semantics).
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Application struct {
	ID         string    `json:"-"           gorm:"type:char(36);primaryKey"`
	Token      string    `json:"token"       gorm:"type:char(32);not null;uniqueIndex:ux_applications_token"`
	Name       string    `json:"name"        gorm:"type:varchar(255);not null"`
	ChatsCount int64     `json:"chats_count" gorm:"not null;default:0"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for Application.
func (Application) TableName() string { return "applications" }

// Chat represents an ordered conversation under an application. Chats carry
// no client-assigned identity: the Number is issued by the counter service
// and is the only handle clients ever see.
//
// The (application_id, number) pair is unique at the storage layer; that
// constraint is the final arbiter against double-ingestion of a pending
// record. Numbers are never reassigned or reused, so a permanently failed
// ingestion leaves a gap rather than a renumbering.
type Chat struct {
	ID            string    `json:"-"              gorm:"type:char(36);primaryKey"`
	ApplicationID string    `json:"-"              gorm:"type:char(36);not null;index;uniqueIndex:ux_chats_app_number,priority:1"`
	Number        int64     `json:"number"         gorm:"not null;uniqueIndex:ux_chats_app_number,priority:2"`
	MessagesCount int64     `json:"messages_count" gorm:"not null;default:0"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// Application is the owning application. Chats are cascade-deleted if
	// their application is removed.
	Application Application `json:"-" gorm:"foreignKey:ApplicationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Chat.
func (Chat) TableName() string { return "chats" }

// Message represents a single utterance within a chat, numbered the same way
// chats are numbered within an application: (chat_id, number) is unique at
// the storage layer.
type Message struct {
	ID        string    `json:"-"      gorm:"type:char(36);primaryKey"`
	ChatID    string    `json:"-"      gorm:"type:char(36);not null;index;uniqueIndex:ux_messages_chat_number,priority:1"`
	Number    int64     `json:"number" gorm:"not null;uniqueIndex:ux_messages_chat_number,priority:2"`
	Body      string    `json:"body"   gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Chat is the parent conversation. Messages are cascade-deleted if their
	// chat is removed.
	Chat Chat `json:"-" gorm:"foreignKey:ChatID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }
