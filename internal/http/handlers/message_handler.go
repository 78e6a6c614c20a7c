package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-journal/internal/domain"
	"github.com/tbourn/go-chat-journal/internal/search"
	"github.com/tbourn/go-chat-journal/internal/services"
)

// CreateMessageRequest is the payload accepted when posting a message.
type CreateMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

// MessageResponse is the public shape of a persisted message.
type MessageResponse struct {
	Number    int64     `json:"number"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func messageResponse(m *domain.Message) MessageResponse {
	return MessageResponse{
		Number:    m.Number,
		Body:      m.Body,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// MessageListResponse is the envelope for paginated message listings.
type MessageListResponse struct {
	Messages   []MessageResponse `json:"messages"`
	Pagination Pagination        `json:"pagination"`
}

// AllocateMessageResponse acknowledges a message allocation. The body is
// echoed back so clients can render optimistically while persistence is
// still in flight.
type AllocateMessageResponse struct {
	Number int64  `json:"number"`
	Body   string `json:"body"`
}

// SearchHit is one search result: a message number plus its body.
type SearchHit struct {
	Number int64  `json:"number"`
	Body   string `json:"body"`
}

// SearchResponse is the envelope for message search results.
type SearchResponse struct {
	Query    string      `json:"query"`
	Messages []SearchHit `json:"messages"`
}

// CreateMessage handles POST /applications/:token/chats/:number/messages.
//
// It allocates the next message number synchronously and returns
// 202 Accepted; the message record itself is persisted asynchronously.
func (h *Handlers) CreateMessage(c *gin.Context) {
	number, okNum := chatNumber(c)
	if !okNum {
		return
	}

	var req CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body", err)
		return
	}

	msgNumber, err := h.msgSvc.Allocate(c.Request.Context(), c.Param("token"), number, req.Body)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyBody):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "body must not be empty", err)
		case errors.Is(err, services.ErrBodyTooLong):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "body exceeds the maximum length", err)
		case errors.Is(err, services.ErrApplicationNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "application not found", err)
		case errors.Is(err, services.ErrChatNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chat not found", err)
		default:
			fail(c, http.StatusInternalServerError, ErrCodeAllocateFailed, "could not allocate message", err)
		}
		return
	}
	ok(c, http.StatusAccepted, AllocateMessageResponse{Number: msgNumber, Body: strings.TrimSpace(req.Body)})
}

// ListMessages handles GET /applications/:token/chats/:number/messages.
func (h *Handlers) ListMessages(c *gin.Context) {
	number, okNum := chatNumber(c)
	if !okNum {
		return
	}
	page, pageSize := clampPagination(c)

	msgs, total, err := h.msgSvc.ListPage(c.Request.Context(), c.Param("token"), number, page, pageSize)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrApplicationNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "application not found", err)
		case errors.Is(err, services.ErrChatNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chat not found", err)
		default:
			fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list messages", err)
		}
		return
	}

	out := make([]MessageResponse, 0, len(msgs))
	for i := range msgs {
		out = append(out, messageResponse(&msgs[i]))
	}
	ok(c, http.StatusOK, MessageListResponse{Messages: out, Pagination: paginationOf(page, pageSize, total)})
}

// SearchMessages handles GET /applications/:token/chats/:number/messages/search.
//
// Matching is phrase-prefix: all query terms must appear consecutively in the
// message body, with the final term allowed to be a prefix.
func (h *Handlers) SearchMessages(c *gin.Context) {
	number, okNum := chatNumber(c)
	if !okNum {
		return
	}

	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "query must not be empty", nil)
		return
	}

	results, err := h.msgSvc.Search(c.Request.Context(), c.Param("token"), number, query)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrApplicationNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "application not found", err)
		case errors.Is(err, services.ErrChatNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chat not found", err)
		default:
			fail(c, http.StatusInternalServerError, ErrCodeSearchFailed, "could not search messages", err)
		}
		return
	}

	hits := make([]SearchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, searchHit(r))
	}
	ok(c, http.StatusOK, SearchResponse{Query: query, Messages: hits})
}

func searchHit(r search.Result) SearchHit {
	return SearchHit{Number: r.Number, Body: r.Body}
}
