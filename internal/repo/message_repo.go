// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-journal/internal/domain"
)

// InsertMessage durably inserts a Message row carrying an allocated sequence
// number. On a uniqueness violation it returns ErrDuplicateNumber.
func InsertMessage(ctx context.Context, db *gorm.DB, chatID string, number int64, body string) (*domain.Message, error) {
	m := &domain.Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Number:    number,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicateNumber
		}
		return nil, err
	}
	return m, nil
}

// ListMessages returns all messages within chatID ordered by number.
func ListMessages(ctx context.Context, db *gorm.DB, chatID string) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("number ASC").
		Find(&out).Error
	return out, err
}

// CountMessages returns the number of persisted message rows within chatID.
func CountMessages(ctx context.Context, db *gorm.DB, chatID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("chat_id = ?", chatID).
		Count(&total).Error
	return total, err
}

// ListMessagesPage returns a paginated slice of messages within chatID,
// ordered by number ascending.
func ListMessagesPage(ctx context.Context, db *gorm.DB, chatID string, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("number ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListAllMessagesBatch returns a slice of all messages ordered by primary
// key, for batched iteration when rebuilding the search index at boot.
func ListAllMessagesBatch(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
