package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-journal/internal/domain"
	"github.com/tbourn/go-chat-journal/internal/services"
)

// ChatResponse is the public shape of a chat. Chats are addressed by their
// per-application number; the internal database ID stays private.
type ChatResponse struct {
	Number        int64     `json:"number"`
	MessagesCount int64     `json:"messages_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func chatResponse(ch *domain.Chat) ChatResponse {
	return ChatResponse{
		Number:        ch.Number,
		MessagesCount: ch.MessagesCount,
		CreatedAt:     ch.CreatedAt,
		UpdatedAt:     ch.UpdatedAt,
	}
}

// ChatListResponse is the envelope for paginated chat listings.
type ChatListResponse struct {
	Chats      []ChatResponse `json:"chats"`
	Pagination Pagination     `json:"pagination"`
}

// AllocateChatResponse acknowledges a chat allocation. Persistence is
// deferred, so only the allocated number is available at response time.
type AllocateChatResponse struct {
	Number int64 `json:"number"`
}

// chatNumber parses the :number path param as a positive integer.
func chatNumber(c *gin.Context) (int64, bool) {
	n, err := strconv.ParseInt(c.Param("number"), 10, 64)
	if err != nil || n < 1 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat number must be a positive integer", err)
		return 0, false
	}
	return n, true
}

// CreateChat handles POST /applications/:token/chats.
//
// It allocates the next chat number synchronously and returns 202 Accepted;
// the chat record itself is persisted asynchronously.
func (h *Handlers) CreateChat(c *gin.Context) {
	number, err := h.chatSvc.Allocate(c.Request.Context(), c.Param("token"))
	if err != nil {
		if errors.Is(err, services.ErrApplicationNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "application not found", err)
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeAllocateFailed, "could not allocate chat", err)
		return
	}
	ok(c, http.StatusAccepted, AllocateChatResponse{Number: number})
}

// ListChats handles GET /applications/:token/chats.
func (h *Handlers) ListChats(c *gin.Context) {
	page, pageSize := clampPagination(c)

	chats, total, err := h.chatSvc.ListPage(c.Request.Context(), c.Param("token"), page, pageSize)
	if err != nil {
		if errors.Is(err, services.ErrApplicationNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "application not found", err)
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list chats", err)
		return
	}

	out := make([]ChatResponse, 0, len(chats))
	for i := range chats {
		out = append(out, chatResponse(&chats[i]))
	}
	ok(c, http.StatusOK, ChatListResponse{Chats: out, Pagination: paginationOf(page, pageSize, total)})
}

// ShowChat handles GET /applications/:token/chats/:number.
func (h *Handlers) ShowChat(c *gin.Context) {
	number, okNum := chatNumber(c)
	if !okNum {
		return
	}

	ch, err := h.chatSvc.Get(c.Request.Context(), c.Param("token"), number)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrApplicationNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "application not found", err)
		case errors.Is(err, services.ErrChatNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chat not found", err)
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not fetch chat", err)
		}
		return
	}
	ok(c, http.StatusOK, chatResponse(ch))
}
