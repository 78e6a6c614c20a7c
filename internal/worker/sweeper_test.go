package worker

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-chat-journal/internal/counter"
	"github.com/tbourn/go-chat-journal/internal/repo"
)

func TestNewSweeper_Defaults(t *testing.T) {
	s := NewSweeper(nil, counter.NewMemoryStore(), 0, zerolog.Nop())
	if s.interval != time.Minute {
		t.Fatalf("interval default = %v, want 1m", s.interval)
	}
	if s.batch != 100 {
		t.Fatalf("batch default = %d, want 100", s.batch)
	}
}

func TestSweepOnce_RaisesChatsCountToCounter(t *testing.T) {
	db := newWorkerDB(t)
	counters := counter.NewMemoryStore()
	ctx := context.Background()

	app, _ := repo.CreateApplication(ctx, db, "a")

	// Counter says 5 numbers were allocated; stored count trails at 3.
	for i := 0; i < 5; i++ {
		if _, err := counters.Next(ctx, counter.ChatKey(app.Token)); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}
	if err := repo.SetChatsCount(ctx, db, app.ID, 3); err != nil {
		t.Fatalf("SetChatsCount: %v", err)
	}

	s := NewSweeper(db, counters, time.Minute, zerolog.Nop())
	if err := s.SweepOnce(ctx); err != nil {
		t.Fatalf("SweepOnce: %v", err)
	}

	got, _ := repo.GetApplicationByToken(ctx, db, app.Token)
	if got.ChatsCount != 5 {
		t.Fatalf("ChatsCount = %d, want exactly 5", got.ChatsCount)
	}

	// The sweeper repairs counts only; it never invents rows.
	rows, _ := repo.CountChats(ctx, db, app.ID)
	if rows != 0 {
		t.Fatalf("sweeper created %d chat rows", rows)
	}
}

func TestSweepOnce_NeverLowersCounts(t *testing.T) {
	db := newWorkerDB(t)
	counters := counter.NewMemoryStore()
	ctx := context.Background()

	app, _ := repo.CreateApplication(ctx, db, "a")

	// Counter behind the stored count (e.g. Redis flushed): no correction.
	if _, err := counters.Next(ctx, counter.ChatKey(app.Token)); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if err := repo.SetChatsCount(ctx, db, app.ID, 4); err != nil {
		t.Fatalf("SetChatsCount: %v", err)
	}

	s := NewSweeper(db, counters, time.Minute, zerolog.Nop())
	if err := s.SweepOnce(ctx); err != nil {
		t.Fatalf("SweepOnce: %v", err)
	}

	got, _ := repo.GetApplicationByToken(ctx, db, app.Token)
	if got.ChatsCount != 4 {
		t.Fatalf("ChatsCount = %d, want 4 (never lowered)", got.ChatsCount)
	}
}

func TestSweepOnce_Idempotent(t *testing.T) {
	db := newWorkerDB(t)
	counters := counter.NewMemoryStore()
	ctx := context.Background()

	app, _ := repo.CreateApplication(ctx, db, "a")
	chat, _ := repo.InsertChat(ctx, db, app.ID, 1)

	for i := 0; i < 2; i++ {
		if _, err := counters.Next(ctx, counter.ChatKey(app.Token)); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}
	for i := 0; i < 3; i++ {
		if _, err := counters.Next(ctx, counter.MessageKey(chat.ID)); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}

	s := NewSweeper(db, counters, time.Minute, zerolog.Nop())
	if err := s.SweepOnce(ctx); err != nil {
		t.Fatalf("first SweepOnce: %v", err)
	}

	appAfter, _ := repo.GetApplicationByToken(ctx, db, app.Token)
	chatAfter, _ := repo.GetChatByNumber(ctx, db, app.ID, 1)
	if appAfter.ChatsCount != 2 || chatAfter.MessagesCount != 3 {
		t.Fatalf("after first sweep: chats=%d msgs=%d, want 2 and 3",
			appAfter.ChatsCount, chatAfter.MessagesCount)
	}

	// No new allocations: a second sweep must change nothing.
	if err := s.SweepOnce(ctx); err != nil {
		t.Fatalf("second SweepOnce: %v", err)
	}
	appAgain, _ := repo.GetApplicationByToken(ctx, db, app.Token)
	chatAgain, _ := repo.GetChatByNumber(ctx, db, app.ID, 1)
	if appAgain.ChatsCount != 2 || chatAgain.MessagesCount != 3 {
		t.Fatalf("second sweep changed counts: chats=%d msgs=%d",
			appAgain.ChatsCount, chatAgain.MessagesCount)
	}
}

func TestSweepOnce_CorrectsMessageCountsPerChat(t *testing.T) {
	db := newWorkerDB(t)
	counters := counter.NewMemoryStore()
	ctx := context.Background()

	app, _ := repo.CreateApplication(ctx, db, "a")
	if _, err := repo.InsertChat(ctx, db, app.ID, 1); err != nil {
		t.Fatalf("InsertChat: %v", err)
	}
	c2, _ := repo.InsertChat(ctx, db, app.ID, 2)

	// Only c2 has drift.
	if _, err := counters.Next(ctx, counter.MessageKey(c2.ID)); err != nil {
		t.Fatalf("Next: %v", err)
	}

	s := NewSweeper(db, counters, time.Minute, zerolog.Nop())
	if err := s.SweepOnce(ctx); err != nil {
		t.Fatalf("SweepOnce: %v", err)
	}

	got1, _ := repo.GetChatByNumber(ctx, db, app.ID, 1)
	got2, _ := repo.GetChatByNumber(ctx, db, app.ID, 2)
	if got1.MessagesCount != 0 {
		t.Fatalf("c1 MessagesCount = %d, want 0", got1.MessagesCount)
	}
	if got2.MessagesCount != 1 {
		t.Fatalf("c2 MessagesCount = %d, want 1", got2.MessagesCount)
	}
}

func TestSweeperRun_StopsOnCancel(t *testing.T) {
	db := newWorkerDB(t)
	s := NewSweeper(db, counter.NewMemoryStore(), 5*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
}
