package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-chat-journal/internal/config"
	"github.com/tbourn/go-chat-journal/internal/counter"
	"github.com/tbourn/go-chat-journal/internal/domain"
	"github.com/tbourn/go-chat-journal/internal/queue"
	"github.com/tbourn/go-chat-journal/internal/search"
	"github.com/tbourn/go-chat-journal/internal/worker"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := db.AutoMigrate(&domain.Application{}, &domain.Chat{}, &domain.Message{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// newStack wires a full pipeline (DB, memory stores, running pool, index) into
// a fresh engine and returns the pieces tests interact with.
func newStack(t *testing.T, cfg config.Config) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	db := newTestDB(t)

	counters := counter.NewMemoryStore()
	queues := queue.NewMemoryStore()
	ix := search.NewIndex()
	feed := search.NewFeed(ix, 16)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go feed.Run(ctx)

	pool := worker.NewPool(db, queues, feed, worker.Options{
		Workers:    2,
		QueueSize:  64,
		RetryMax:   3,
		RetryDelay: 10 * time.Millisecond,
	}, zerolog.Nop())
	pool.Start(ctx)
	t.Cleanup(pool.Stop)

	RegisterRoutes(r, db, counters, queues, pool, ix, cfg)
	return r, db
}

func baseConfig() config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		RateRPS:     1000,
		RateBurst:   1000,
		CORS:        config.CORSConfig{AllowedOrigins: nil}, // triggers AllowAllOrigins branch
		Security:    config.SecurityConfig{EnableHSTS: false, HSTSMaxAge: 0},
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
	}
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r, _ := newStack(t, baseConfig())

	// /health works
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	// CORS (AllowAllOrigins) → header "*"
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /metrics is wired
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || len(w.Body.Bytes()) == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	// NoMethod → 405 (DELETE /health)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("DELETE /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := baseConfig()
	cfg.APIBasePath = "/api/v2"
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	r, _ := newStack(t, cfg)

	// Any request runs through CORS middleware; header should reflect origin.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
}

// doJSON issues a request with an optional JSON body and decodes the response
// into out when non-nil.
func doJSON(t *testing.T, r *gin.Engine, method, path, body string, out any) int {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(w, req)
	if out != nil && w.Code < 300 {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w.Code
}

// waitFor polls fn until it returns true or the deadline passes.
func waitFor(t *testing.T, d time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not reached within %v", d)
}

func TestRegisterRoutes_EndToEndAllocationFlow(t *testing.T) {
	r, _ := newStack(t, baseConfig())

	// Create an application
	var app struct {
		Token string `json:"token"`
		Name  string `json:"name"`
	}
	if code := doJSON(t, r, http.MethodPost, "/api/v1/applications", `{"name":"demo app"}`, &app); code != http.StatusCreated {
		t.Fatalf("create application -> %d", code)
	}
	if len(app.Token) != 32 {
		t.Fatalf("token = %q", app.Token)
	}
	base := "/api/v1/applications/" + app.Token

	// Allocate a chat: 202 with number 1
	var alloc struct {
		Number int64 `json:"number"`
	}
	if code := doJSON(t, r, http.MethodPost, base+"/chats", "", &alloc); code != http.StatusAccepted {
		t.Fatalf("allocate chat -> %d", code)
	}
	if alloc.Number != 1 {
		t.Fatalf("first chat number = %d", alloc.Number)
	}

	// The chat is persisted asynchronously; poll until visible
	waitFor(t, 2*time.Second, func() bool {
		return doJSON(t, r, http.MethodGet, base+"/chats/1", "", nil) == http.StatusOK
	})

	// Allocate a message in the chat
	var msg struct {
		Number int64  `json:"number"`
		Body   string `json:"body"`
	}
	if code := doJSON(t, r, http.MethodPost, base+"/chats/1/messages", `{"body":"hello deferred world"}`, &msg); code != http.StatusAccepted {
		t.Fatalf("allocate message -> %d", code)
	}
	if msg.Number != 1 || msg.Body != "hello deferred world" {
		t.Fatalf("unexpected allocation: %+v", msg)
	}

	// Wait until the message is persisted and listed
	var list struct {
		Messages []struct {
			Number int64  `json:"number"`
			Body   string `json:"body"`
		} `json:"messages"`
	}
	waitFor(t, 2*time.Second, func() bool {
		list.Messages = nil
		code := doJSON(t, r, http.MethodGet, base+"/chats/1/messages", "", &list)
		return code == http.StatusOK && len(list.Messages) == 1
	})
	if list.Messages[0].Number != 1 || list.Messages[0].Body != "hello deferred world" {
		t.Fatalf("unexpected listing: %+v", list.Messages)
	}

	// The persistence observer feeds the search index
	var res struct {
		Messages []struct {
			Number int64 `json:"number"`
		} `json:"messages"`
	}
	waitFor(t, 2*time.Second, func() bool {
		res.Messages = nil
		code := doJSON(t, r, http.MethodGet, base+"/chats/1/messages/search?query=hello+def", "", &res)
		return code == http.StatusOK && len(res.Messages) == 1
	})
	if res.Messages[0].Number != 1 {
		t.Fatalf("unexpected search hit: %+v", res.Messages)
	}

	// Chat counter is scoped per application: a second chat gets number 2
	if code := doJSON(t, r, http.MethodPost, base+"/chats", "", &alloc); code != http.StatusAccepted {
		t.Fatalf("second chat -> %d", code)
	}
	if alloc.Number != 2 {
		t.Fatalf("second chat number = %d", alloc.Number)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")) // 12 bytes
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// "/" and "" should mount at root
	root1 := groupWithPrefix(r, "/")
	root1.GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	root2 := groupWithPrefix(r, "")
	root2.GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })

	// non-root prefix
	api := groupWithPrefix(r, "/api")
	api.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	// Hit all three
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/one", nil)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "one" {
		t.Fatalf("GET /one got %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/two", nil)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "two" {
		t.Fatalf("GET /two got %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "pong" {
		t.Fatalf("GET /api/ping got %d %q", rec.Code, rec.Body.String())
	}
}

// Smoke test that a request traverses ratelimit + otel + security headers pipeline.
func TestPipeline_Smoke(t *testing.T) {
	cfg := baseConfig()
	cfg.Security = config.SecurityConfig{EnableHSTS: true, HSTSMaxAge: time.Hour} // only set on https
	r, _ := newStack(t, cfg)

	// Any request goes through the middleware stack
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("pipeline GET /health = %d", w.Code)
	}
	// RequestID header should be present (from RequestID middleware)
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
	// Baseline security headers applied
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("expected security headers on response")
	}
}

func TestWarmIndex_LoadsPersistedMessages(t *testing.T) {
	db := newTestDB(t)

	app := domain.Application{ID: "app-1", Token: "0123456789abcdef0123456789abcdef", Name: "warm"}
	if err := db.Create(&app).Error; err != nil {
		t.Fatalf("seed application: %v", err)
	}
	ch := domain.Chat{ID: "chat-1", ApplicationID: app.ID, Number: 1}
	if err := db.Create(&ch).Error; err != nil {
		t.Fatalf("seed chat: %v", err)
	}
	for i, body := range []string{"hello warm world", "unrelated text"} {
		msg := domain.Message{ID: fmt.Sprintf("msg-%d", i+1), ChatID: ch.ID, Number: int64(i + 1), Body: body}
		if err := db.Create(&msg).Error; err != nil {
			t.Fatalf("seed message: %v", err)
		}
	}

	idx := search.NewIndex()
	if err := WarmIndex(context.Background(), db, idx); err != nil {
		t.Fatalf("WarmIndex: %v", err)
	}
	if got := idx.Len(ch.ID); got != 2 {
		t.Fatalf("indexed %d messages, want 2", got)
	}
	hits := idx.Search(ch.ID, "hello wa", 0)
	if len(hits) != 1 || hits[0].Number != 1 {
		t.Fatalf("unexpected hits: %+v", hits)
	}
}
