// Package handlers: handler wiring and shared service contracts.
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results into HTTP responses. All service
// dependencies are abstract interfaces so transport concerns stay separate
// from business logic.
package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-journal/internal/domain"
	"github.com/tbourn/go-chat-journal/internal/search"
	"github.com/tbourn/go-chat-journal/internal/utils"
)

// ApplicationService defines application CRUD operations consumed by HTTP
// handlers. Implementations must be safe for concurrent use and honor the
// provided context.
type ApplicationService interface {
	// Create registers a new application and generates its token.
	Create(ctx context.Context, name string) (*domain.Application, error)
	// Get fetches an application by token.
	Get(ctx context.Context, token string) (*domain.Application, error)
	// UpdateName renames an application.
	UpdateName(ctx context.Context, token, name string) error
}

// ChatService defines chat allocation and read operations.
type ChatService interface {
	// Allocate issues the next chat number and schedules deferred persistence.
	Allocate(ctx context.Context, token string) (int64, error)
	// Get fetches a persisted chat by its number.
	Get(ctx context.Context, token string, number int64) (*domain.Chat, error)
	// ListPage returns a page of persisted chats and the total count.
	ListPage(ctx context.Context, token string, page, pageSize int) ([]domain.Chat, int64, error)
}

// MessageService defines message allocation, read, and search operations.
type MessageService interface {
	// Allocate issues the next message number and schedules deferred persistence.
	Allocate(ctx context.Context, token string, chatNumber int64, body string) (int64, error)
	// ListPage returns a page of persisted messages and the total count.
	ListPage(ctx context.Context, token string, chatNumber int64, page, pageSize int) ([]domain.Message, int64, error)
	// Search returns persisted messages matching query within the chat.
	Search(ctx context.Context, token string, chatNumber int64, query string) ([]search.Result, error)
}

// Handlers groups HTTP endpoints for applications, chats, and messages.
type Handlers struct {
	appSvc  ApplicationService
	chatSvc ChatService
	msgSvc  MessageService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(appSvc ApplicationService, chatSvc ChatService, msgSvc MessageService) *Handlers {
	return &Handlers{appSvc: appSvc, chatSvc: chatSvc, msgSvc: msgSvc}
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	return page, utils.ClampInt(pageSize, 1, maxPageSize)
}

// paginationOf computes the response metadata for a page.
func paginationOf(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}
