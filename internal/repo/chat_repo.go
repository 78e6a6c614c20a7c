// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Chat model.
//
// InsertChat is the durable half of the chat ingestion pipeline: the
// (application_id, number) unique index is the final arbiter of sequence
// correctness, so a duplicate number surfaces as ErrDuplicateNumber rather
// than silently winning or losing a race.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-journal/internal/domain"
)

// ErrDuplicateNumber is returned when an insert collides with an existing
// (owner, number) pair. It signals an invariant violation in sequence
// allocation, not a transient fault, so callers must not retry.
var ErrDuplicateNumber = errors.New("duplicate sequence number")

// isDuplicate reports whether err is a storage-level uniqueness violation.
// TranslateError maps these to gorm.ErrDuplicatedKey; the string check covers
// paths where translation is not active (e.g. raw Exec).
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// InsertChat durably inserts a Chat row carrying an allocated sequence
// number. On a uniqueness violation it returns ErrDuplicateNumber.
func InsertChat(ctx context.Context, db *gorm.DB, applicationID string, number int64) (*domain.Chat, error) {
	c := &domain.Chat{
		ID:            uuid.NewString(),
		ApplicationID: applicationID,
		Number:        number,
		CreatedAt:     time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicateNumber
		}
		return nil, err
	}
	return c, nil
}

// GetChatByNumber fetches the chat with the given number under application
// applicationID, or ErrNotFound.
func GetChatByNumber(ctx context.Context, db *gorm.DB, applicationID string, number int64) (*domain.Chat, error) {
	var c domain.Chat
	err := db.WithContext(ctx).
		Where("application_id = ? AND number = ?", applicationID, number).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListChats returns all chats under applicationID ordered by number.
func ListChats(ctx context.Context, db *gorm.DB, applicationID string) ([]domain.Chat, error) {
	var out []domain.Chat
	err := db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("number ASC").
		Find(&out).Error
	return out, err
}

// CountChats returns the number of persisted chat rows under applicationID.
// Note this counts rows, not allocations; it may trail the denormalized
// chats_count when numbers were allocated but never persisted.
func CountChats(ctx context.Context, db *gorm.DB, applicationID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Chat{}).
		Where("application_id = ?", applicationID).
		Count(&total).Error
	return total, err
}

// ListChatsPage returns a paginated slice of chats under applicationID,
// ordered by number ascending.
func ListChatsPage(ctx context.Context, db *gorm.DB, applicationID string, offset, limit int) ([]domain.Chat, error) {
	var out []domain.Chat
	err := db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("number ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// IncrementMessagesCount bumps the denormalized message count of chat id by
// exactly one. Used by the message ingestion worker after a successful insert.
func IncrementMessagesCount(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).
		Model(&domain.Chat{}).
		Where("id = ?", id).
		UpdateColumn("messages_count", gorm.Expr("messages_count + 1")).Error
}

// SetMessagesCount raises the denormalized message count of chat id to count.
// Forward-only: the WHERE guard prevents any decrease.
func SetMessagesCount(ctx context.Context, db *gorm.DB, id string, count int64) error {
	return db.WithContext(ctx).
		Model(&domain.Chat{}).
		Where("id = ? AND messages_count < ?", id, count).
		UpdateColumn("messages_count", count).Error
}
