// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Application
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When an application is not found, functions return
//     gorm.ErrRecordNotFound (also exported here as ErrNotFound).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-journal/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist. It aliases
// gorm.ErrRecordNotFound for convenience and consistency across the service
// layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// NewToken generates a fresh application token: 16 random bytes, hex-encoded
// to 32 lowercase characters. Tokens are opaque handles and are never reused.
func NewToken() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing means the process has no usable entropy source;
		// there is nothing sensible to fall back to.
		panic(err)
	}
	return hex.EncodeToString(b)
}

// CreateApplication inserts a new Application row with a generated UUID
// primary key and a fresh token. ChatsCount starts at zero.
func CreateApplication(ctx context.Context, db *gorm.DB, name string) (*domain.Application, error) {
	a := &domain.Application{
		ID:        uuid.NewString(),
		Token:     NewToken(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

// GetApplicationByToken fetches a single application by its public token.
// If the record does not exist, it returns ErrNotFound.
func GetApplicationByToken(ctx context.Context, db *gorm.DB, token string) (*domain.Application, error) {
	var a domain.Application
	err := db.WithContext(ctx).
		Where("token = ?", token).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetApplicationByID fetches a single application by primary key. Used by
// the ingestion worker, whose triggers carry the owner's internal id.
func GetApplicationByID(ctx context.Context, db *gorm.DB, id string) (*domain.Application, error) {
	var a domain.Application
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateApplicationName renames the application identified by token. If no
// rows are affected (unknown token), it returns ErrNotFound.
func UpdateApplicationName(ctx context.Context, db *gorm.DB, token, name string) error {
	res := db.WithContext(ctx).
		Model(&domain.Application{}).
		Where("token = ?", token).
		Update("name", name)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IncrementChatsCount bumps the denormalized chat count of application id by
// exactly one. Used by the chat ingestion worker after a successful insert.
func IncrementChatsCount(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).
		Model(&domain.Application{}).
		Where("id = ?", id).
		UpdateColumn("chats_count", gorm.Expr("chats_count + 1")).Error
}

// SetChatsCount raises the denormalized chat count of application id to
// count. The WHERE guard makes the write forward-only even if two sweeper
// runs race: a count is never decreased.
func SetChatsCount(ctx context.Context, db *gorm.DB, id string, count int64) error {
	return db.WithContext(ctx).
		Model(&domain.Application{}).
		Where("id = ? AND chats_count < ?", id, count).
		UpdateColumn("chats_count", count).Error
}

// ListApplicationsBatch returns a slice of applications ordered by creation
// time, for batched iteration by the reconciliation sweeper.
func ListApplicationsBatch(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Application, error) {
	var out []domain.Application
	err := db.WithContext(ctx).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
