// Package services – MessageService
//
// This file implements MessageService, which owns the request-path half of
// message creation plus message reads and search. Allocation mirrors
// ChatService: resolve owners first (no side effects on a miss), take the
// next number from the chat's counter, park the pending record, schedule a
// worker run, return immediately.
//
// Observability: Allocate is OpenTelemetry-instrumented; spans carry the
// application token and chat number.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-journal/internal/counter"
	"github.com/tbourn/go-chat-journal/internal/domain"
	"github.com/tbourn/go-chat-journal/internal/queue"
	"github.com/tbourn/go-chat-journal/internal/repo"
	"github.com/tbourn/go-chat-journal/internal/search"
	"github.com/tbourn/go-chat-journal/internal/worker"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MessageService provides message number allocation, reads, and search.
type MessageService struct {
	DB       *gorm.DB
	Counters counter.Store
	Queues   queue.Store
	Pool     Dispatcher
	Index    *search.Index

	// MaxBodyRunes caps message bodies by rune length; 0 disables the guard.
	MaxBodyRunes int

	// SearchLimit caps search results per query.
	SearchLimit int
}

// NewMessageService constructs a MessageService with sane defaults.
func NewMessageService(db *gorm.DB, counters counter.Store, queues queue.Store, pool Dispatcher, ix *search.Index) *MessageService {
	return &MessageService{
		DB:           db,
		Counters:     counters,
		Queues:       queues,
		Pool:         pool,
		Index:        ix,
		MaxBodyRunes: 4000,
		SearchLimit:  50,
	}
}

// Allocate issues the next message number for the chat and schedules its
// deferred persistence, returning the number without waiting for the row.
// The chat must already be persisted: allocating against a chat number that
// has no row yet returns ErrChatNotFound with no counter side effect.
func (s *MessageService) Allocate(ctx context.Context, token string, chatNumber int64, body string) (int64, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Allocate",
		trace.WithAttributes(
			attribute.String("application.token", token),
			attribute.Int64("chat.number", chatNumber),
		),
	)
	defer span.End()

	body = strings.TrimSpace(body)
	if body == "" {
		return 0, ErrEmptyBody
	}
	if s.MaxBodyRunes > 0 && utf8.RuneCountInString(body) > s.MaxBodyRunes {
		return 0, ErrBodyTooLong
	}

	chat, err := s.resolveChat(ctx, token, chatNumber)
	if err != nil {
		return 0, err
	}

	number, err := s.Counters.Next(ctx, counter.MessageKey(chat.ID))
	if err != nil {
		return 0, err
	}

	payload, err := json.Marshal(domain.PendingMessage{ChatID: chat.ID, Number: number, Body: body})
	if err != nil {
		return 0, err
	}
	if err := s.Queues.Push(ctx, queue.MessageKey(chat.ID), payload); err != nil {
		return 0, err
	}

	if err := s.Pool.Dispatch(ctx, worker.Trigger{Kind: worker.KindMessage, OwnerID: chat.ID}); err != nil {
		log.Warn().Err(err).
			Str("chat_id", chat.ID).
			Int64("number", number).
			Msg("message ingestion dispatch failed; record stays queued")
	}
	return number, nil
}

// ListPage returns a page of the chat's persisted messages and the total
// count.
func (s *MessageService) ListPage(ctx context.Context, token string, chatNumber int64, page, pageSize int) ([]domain.Message, int64, error) {
	chat, err := s.resolveChat(ctx, token, chatNumber)
	if err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountMessages(ctx, s.DB, chat.ID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}

	items, err := repo.ListMessagesPage(ctx, s.DB, chat.ID, offset, pageSize)
	return items, total, err
}

// Search returns persisted messages in the chat whose bodies match query
// with phrase-prefix semantics.
func (s *MessageService) Search(ctx context.Context, token string, chatNumber int64, query string) ([]search.Result, error) {
	chat, err := s.resolveChat(ctx, token, chatNumber)
	if err != nil {
		return nil, err
	}
	return s.Index.Search(chat.ID, query, s.SearchLimit), nil
}

// resolveChat maps (token, chatNumber) to a persisted chat row, translating
// repo misses into service-level errors.
func (s *MessageService) resolveChat(ctx context.Context, token string, chatNumber int64) (*domain.Chat, error) {
	app, err := repo.GetApplicationByToken(ctx, s.DB, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrApplicationNotFound
		}
		return nil, err
	}
	chat, err := repo.GetChatByNumber(ctx, s.DB, app.ID, chatNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	return chat, nil
}
