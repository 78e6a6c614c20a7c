package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tbourn/go-chat-journal/internal/domain"
	"github.com/tbourn/go-chat-journal/internal/search"
	"github.com/tbourn/go-chat-journal/internal/services"
)

// ---------- CreateMessage ----------

func TestCreateMessage(t *testing.T) {
	// Success -> 202 Accepted, body echoed trimmed
	{
		svc := stubMsgSvc{allocate: func(ctx context.Context, token string, chatNumber int64, body string) (int64, error) {
			if token != "tok1" || chatNumber != 2 {
				t.Fatalf("args: %q %d", token, chatNumber)
			}
			return 11, nil
		}}
		r := newTestRouter(New(stubAppSvc{}, stubChatSvc{}, svc))
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/applications/tok1/chats/2/messages", bytes.NewBufferString(`{"body":"  hello world  "}`))
		r.ServeHTTP(w, req)
		if w.Code != http.StatusAccepted {
			t.Fatalf("allocate -> %d body=%s", w.Code, w.Body.String())
		}
		var out AllocateMessageResponse
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("json: %v", err)
		}
		if out.Number != 11 || out.Body != "hello world" {
			t.Fatalf("unexpected allocation: %#v", out)
		}
	}

	// Bad JSON -> 400
	{
		r := newTestRouter(New(stubAppSvc{}, stubChatSvc{}, stubMsgSvc{}))
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/applications/tok1/chats/2/messages", bytes.NewBufferString("{bad"))
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("bad json -> %d", w.Code)
		}
	}

	// Bad chat number -> 400 before the service runs
	{
		svc := stubMsgSvc{allocate: func(context.Context, string, int64, string) (int64, error) {
			t.Fatal("service should not be called on bad number")
			return 0, nil
		}}
		r := newTestRouter(New(stubAppSvc{}, stubChatSvc{}, svc))
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/applications/tok1/chats/zero/messages", bytes.NewBufferString(`{"body":"x"}`))
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("bad number -> %d", w.Code)
		}
	}

	// Validation errors -> 400
	for _, svcErr := range []error{services.ErrEmptyBody, services.ErrBodyTooLong} {
		svc := stubMsgSvc{allocate: func(context.Context, string, int64, string) (int64, error) {
			return 0, svcErr
		}}
		r := newTestRouter(New(stubAppSvc{}, stubChatSvc{}, svc))
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/applications/tok1/chats/2/messages", bytes.NewBufferString(`{"body":"x"}`))
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%v -> %d", svcErr, w.Code)
		}
	}

	// Unknown chat -> 404
	{
		svc := stubMsgSvc{allocate: func(context.Context, string, int64, string) (int64, error) {
			return 0, services.ErrChatNotFound
		}}
		r := newTestRouter(New(stubAppSvc{}, stubChatSvc{}, svc))
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/applications/tok1/chats/99/messages", bytes.NewBufferString(`{"body":"x"}`))
		r.ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Fatalf("unknown chat -> %d", w.Code)
		}
	}

	// Counter failure -> 500
	{
		svc := stubMsgSvc{allocate: func(context.Context, string, int64, string) (int64, error) {
			return 0, errors.New("redis down")
		}}
		r := newTestRouter(New(stubAppSvc{}, stubChatSvc{}, svc))
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/applications/tok1/chats/2/messages", bytes.NewBufferString(`{"body":"x"}`))
		r.ServeHTTP(w, req)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("internal -> %d", w.Code)
		}
	}
}

// ---------- ListMessages ----------

func TestListMessages(t *testing.T) {
	svc := stubMsgSvc{listPage: func(ctx context.Context, token string, chatNumber int64, page, pageSize int) ([]domain.Message, int64, error) {
		if token != "tok1" || chatNumber != 3 {
			t.Fatalf("args: %q %d", token, chatNumber)
		}
		return []domain.Message{{Number: 1, Body: "hi"}, {Number: 2, Body: "there"}}, 2, nil
	}}
	r := newTestRouter(New(stubAppSvc{}, stubChatSvc{}, svc))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/applications/tok1/chats/3/messages", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list -> %d body=%s", w.Code, w.Body.String())
	}

	var out MessageListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(out.Messages) != 2 || out.Messages[0].Number != 1 || out.Messages[1].Body != "there" {
		t.Fatalf("unexpected messages: %#v", out.Messages)
	}
	if out.Pagination.Total != 2 || out.Pagination.HasNext {
		t.Fatalf("pagination mismatch: %#v", out.Pagination)
	}
}

func TestListMessages_UnknownChat(t *testing.T) {
	svc := stubMsgSvc{listPage: func(context.Context, string, int64, int, int) ([]domain.Message, int64, error) {
		return nil, 0, services.ErrChatNotFound
	}}
	r := newTestRouter(New(stubAppSvc{}, stubChatSvc{}, svc))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/applications/tok1/chats/9/messages", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown chat -> %d", w.Code)
	}
}

// ---------- SearchMessages ----------

func TestSearchMessages(t *testing.T) {
	// Success -> hits in order
	{
		svc := stubMsgSvc{search: func(ctx context.Context, token string, chatNumber int64, query string) ([]search.Result, error) {
			if query != "hello wor" {
				t.Fatalf("query = %q", query)
			}
			return []search.Result{{Number: 1, Body: "hello world"}, {Number: 4, Body: "hello worn gloves"}}, nil
		}}
		r := newTestRouter(New(stubAppSvc{}, stubChatSvc{}, svc))
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/applications/tok1/chats/2/messages/search?query=hello+wor", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("search -> %d body=%s", w.Code, w.Body.String())
		}
		var out SearchResponse
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("json: %v", err)
		}
		if out.Query != "hello wor" || len(out.Messages) != 2 || out.Messages[1].Number != 4 {
			t.Fatalf("unexpected results: %#v", out)
		}
	}

	// Empty query -> 400 without touching the service
	{
		svc := stubMsgSvc{search: func(context.Context, string, int64, string) ([]search.Result, error) {
			t.Fatal("service should not be called on empty query")
			return nil, nil
		}}
		r := newTestRouter(New(stubAppSvc{}, stubChatSvc{}, svc))
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/applications/tok1/chats/2/messages/search?query=%20%20", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("empty query -> %d", w.Code)
		}
	}

	// Unknown application -> 404
	{
		svc := stubMsgSvc{search: func(context.Context, string, int64, string) ([]search.Result, error) {
			return nil, services.ErrApplicationNotFound
		}}
		r := newTestRouter(New(stubAppSvc{}, stubChatSvc{}, svc))
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/applications/nope/chats/2/messages/search?query=x", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Fatalf("unknown application -> %d", w.Code)
		}
	}

	// Index failure -> 500 with search_failed
	{
		svc := stubMsgSvc{search: func(context.Context, string, int64, string) ([]search.Result, error) {
			return nil, errors.New("index rebuild in progress")
		}}
		r := newTestRouter(New(stubAppSvc{}, stubChatSvc{}, svc))
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/applications/tok1/chats/2/messages/search?query=x", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("internal -> %d", w.Code)
		}
		var out ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("json: %v", err)
		}
		if out.Code != ErrCodeSearchFailed {
			t.Fatalf("code = %q", out.Code)
		}
	}
}
