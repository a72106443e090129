package badger

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/ragline/core"
)

func TestConversationRepository_History(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()
	repo := stores.Conversations

	now := time.Now()
	exp := now.Add(14 * 24 * time.Hour).Unix()
	turns := []*core.ConversationTurn{
		{SessionID: "s1", Timestamp: core.FormatTimestamp(now.Add(2 * time.Second)), Sender: core.SenderAssistant, Message: "hi there", Expiration: exp},
		{SessionID: "s1", Timestamp: core.FormatTimestamp(now), Sender: core.SenderUser, Message: "hello", Expiration: exp},
		{SessionID: "s2", Timestamp: core.FormatTimestamp(now), Sender: core.SenderUser, Message: "other", Expiration: exp},
	}
	for _, turn := range turns {
		if err := repo.AppendTurn(ctx, turn); err != nil {
			t.Fatalf("AppendTurn() error = %v", err)
		}
	}

	history, err := repo.History(ctx, "s1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("History() returned %d turns, want 2", len(history))
	}
	if history[0].Message != "hello" || history[1].Message != "hi there" {
		t.Fatalf("History() not ordered by timestamp: %+v", history)
	}
}

func TestConversationRepository_ExpiredTurnsHidden(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()
	repo := stores.Conversations

	now := time.Now()
	// Expiration is later than badger's clock but earlier than the repository's.
	repo.now = func() time.Time { return now.Add(time.Hour) }

	repo.AppendTurn(ctx, &core.ConversationTurn{
		SessionID: "s1", Timestamp: core.FormatTimestamp(now), Sender: core.SenderUser,
		Message: "stale", Expiration: now.Add(time.Minute).Unix(),
	})
	repo.AppendTurn(ctx, &core.ConversationTurn{
		SessionID: "s1", Timestamp: core.FormatTimestamp(now.Add(time.Second)), Sender: core.SenderUser,
		Message: "fresh", Expiration: now.Add(2 * time.Hour).Unix(),
	})

	history, err := repo.History(ctx, "s1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 || history[0].Message != "fresh" {
		t.Fatalf("History() = %+v, want only the fresh turn", history)
	}
}

func TestConversationRepository_RejectsInvalidSender(t *testing.T) {
	stores := newTestStores(t)
	err := stores.Conversations.AppendTurn(context.Background(), &core.ConversationTurn{
		SessionID: "s1", Timestamp: "1.000000", Sender: "robot",
	})
	if err == nil {
		t.Fatal("AppendTurn() with invalid sender should fail")
	}
}
