package repo

import (
	"context"
	"errors"
	"testing"
)

func TestInsertChat_PersistsNumber(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	app, _ := CreateApplication(ctx, db, "a")
	chat, err := InsertChat(ctx, db, app.ID, 1)
	if err != nil {
		t.Fatalf("InsertChat: %v", err)
	}
	if chat.ID == "" || chat.Number != 1 || chat.ApplicationID != app.ID {
		t.Fatalf("unexpected Chat fields: %+v", chat)
	}
	if chat.MessagesCount != 0 {
		t.Fatalf("MessagesCount = %d, want 0", chat.MessagesCount)
	}
}

func TestInsertChat_DuplicateNumberSameApplication(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	app, _ := CreateApplication(ctx, db, "a")
	if _, err := InsertChat(ctx, db, app.ID, 7); err != nil {
		t.Fatalf("first InsertChat: %v", err)
	}
	_, err := InsertChat(ctx, db, app.ID, 7)
	if !errors.Is(err, ErrDuplicateNumber) {
		t.Fatalf("second InsertChat err = %v, want ErrDuplicateNumber", err)
	}
}

func TestInsertChat_SameNumberDifferentApplications(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a1, _ := CreateApplication(ctx, db, "one")
	a2, _ := CreateApplication(ctx, db, "two")

	if _, err := InsertChat(ctx, db, a1.ID, 1); err != nil {
		t.Fatalf("InsertChat app1: %v", err)
	}
	if _, err := InsertChat(ctx, db, a2.ID, 1); err != nil {
		t.Fatalf("InsertChat app2 should not collide: %v", err)
	}
}

func TestGetChatByNumber(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	app, _ := CreateApplication(ctx, db, "a")
	want, _ := InsertChat(ctx, db, app.ID, 3)

	got, err := GetChatByNumber(ctx, db, app.ID, 3)
	if err != nil {
		t.Fatalf("GetChatByNumber: %v", err)
	}
	if got.ID != want.ID {
		t.Fatalf("got chat %q, want %q", got.ID, want.ID)
	}

	if _, err := GetChatByNumber(ctx, db, app.ID, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing number err = %v, want ErrNotFound", err)
	}
}

func TestListChats_OrderedByNumber(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	app, _ := CreateApplication(ctx, db, "a")
	// Insert out of order; listing must come back sorted by number.
	for _, n := range []int64{3, 1, 2} {
		if _, err := InsertChat(ctx, db, app.ID, n); err != nil {
			t.Fatalf("InsertChat %d: %v", n, err)
		}
	}

	chats, err := ListChats(ctx, db, app.ID)
	if err != nil {
		t.Fatalf("ListChats: %v", err)
	}
	if len(chats) != 3 {
		t.Fatalf("len = %d, want 3", len(chats))
	}
	for i, c := range chats {
		if c.Number != int64(i+1) {
			t.Fatalf("chats[%d].Number = %d, want %d", i, c.Number, i+1)
		}
	}
}

func TestListChatsPage(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	app, _ := CreateApplication(ctx, db, "a")
	for n := int64(1); n <= 5; n++ {
		if _, err := InsertChat(ctx, db, app.ID, n); err != nil {
			t.Fatalf("InsertChat: %v", err)
		}
	}

	page, err := ListChatsPage(ctx, db, app.ID, 2, 2)
	if err != nil {
		t.Fatalf("ListChatsPage: %v", err)
	}
	if len(page) != 2 || page[0].Number != 3 || page[1].Number != 4 {
		t.Fatalf("unexpected page: %+v", page)
	}

	total, err := CountChats(ctx, db, app.ID)
	if err != nil {
		t.Fatalf("CountChats: %v", err)
	}
	if total != 5 {
		t.Fatalf("CountChats = %d, want 5", total)
	}
}

func TestSetMessagesCount_ForwardOnly(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	app, _ := CreateApplication(ctx, db, "a")
	chat, _ := InsertChat(ctx, db, app.ID, 1)

	if err := IncrementMessagesCount(ctx, db, chat.ID); err != nil {
		t.Fatalf("IncrementMessagesCount: %v", err)
	}
	if err := SetMessagesCount(ctx, db, chat.ID, 4); err != nil {
		t.Fatalf("SetMessagesCount: %v", err)
	}
	got, _ := GetChatByNumber(ctx, db, app.ID, 1)
	if got.MessagesCount != 4 {
		t.Fatalf("MessagesCount = %d, want 4", got.MessagesCount)
	}

	if err := SetMessagesCount(ctx, db, chat.ID, 2); err != nil {
		t.Fatalf("SetMessagesCount lower: %v", err)
	}
	got, _ = GetChatByNumber(ctx, db, app.ID, 1)
	if got.MessagesCount != 4 {
		t.Fatalf("MessagesCount decreased to %d", got.MessagesCount)
	}
}
