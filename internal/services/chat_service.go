// Package services – ChatService
//
// This file implements the ChatService, which owns the request-path half of
// chat creation: resolve the application, take the next number from the
// counter service, park the pending record in the write queue, and schedule
// an ingestion run. The caller gets its number back immediately; the durable
// insert happens in the worker pool.
//
// Failure policy: a counter or queue error aborts the request with no number
// handed out. A dispatch error after a successful enqueue is logged but does
// not fail the request, because the pending record is already safe in the
// queue and any later trigger for the same application will drain it.
package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-journal/internal/counter"
	"github.com/tbourn/go-chat-journal/internal/domain"
	"github.com/tbourn/go-chat-journal/internal/queue"
	"github.com/tbourn/go-chat-journal/internal/repo"
	"github.com/tbourn/go-chat-journal/internal/worker"
)

// Dispatcher schedules ingestion runs. Satisfied by *worker.Pool; tests use
// fakes.
type Dispatcher interface {
	Dispatch(ctx context.Context, tr worker.Trigger) error
}

// ChatService provides chat number allocation and chat reads.
type ChatService struct {
	DB       *gorm.DB
	Counters counter.Store
	Queues   queue.Store
	Pool     Dispatcher
}

// NewChatService constructs a ChatService over the given handles.
func NewChatService(db *gorm.DB, counters counter.Store, queues queue.Store, pool Dispatcher) *ChatService {
	return &ChatService{DB: db, Counters: counters, Queues: queues, Pool: pool}
}

// Allocate issues the next chat number for the application identified by
// token and schedules its deferred persistence. It returns the number
// without waiting for the row to exist.
func (s *ChatService) Allocate(ctx context.Context, token string) (int64, error) {
	app, err := repo.GetApplicationByToken(ctx, s.DB, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrApplicationNotFound
		}
		return 0, err
	}

	number, err := s.Counters.Next(ctx, counter.ChatKey(app.Token))
	if err != nil {
		return 0, err
	}

	payload, err := json.Marshal(domain.PendingChat{ApplicationID: app.ID, Number: number})
	if err != nil {
		return 0, err
	}
	if err := s.Queues.Push(ctx, queue.ChatKey(app.Token), payload); err != nil {
		return 0, err
	}

	if err := s.Pool.Dispatch(ctx, worker.Trigger{Kind: worker.KindChat, OwnerID: app.ID}); err != nil {
		log.Warn().Err(err).
			Str("application_id", app.ID).
			Int64("number", number).
			Msg("chat ingestion dispatch failed; record stays queued")
	}
	return number, nil
}

// Get fetches the chat with the given number under the application.
func (s *ChatService) Get(ctx context.Context, token string, number int64) (*domain.Chat, error) {
	app, err := repo.GetApplicationByToken(ctx, s.DB, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrApplicationNotFound
		}
		return nil, err
	}
	chat, err := repo.GetChatByNumber(ctx, s.DB, app.ID, number)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	return chat, nil
}

// ListPage returns a page of the application's persisted chats and the total
// count. It applies defaults for invalid page/pageSize.
func (s *ChatService) ListPage(ctx context.Context, token string, page, pageSize int) ([]domain.Chat, int64, error) {
	app, err := repo.GetApplicationByToken(ctx, s.DB, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, ErrApplicationNotFound
		}
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountChats(ctx, s.DB, app.ID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Chat{}, 0, nil
	}

	items, err := repo.ListChatsPage(ctx, s.DB, app.ID, offset, pageSize)
	return items, total, err
}
