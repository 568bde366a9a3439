package server

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestMemoryChatStoreAppendAndHistory(t *testing.T) {
	store := NewMemoryChatStore(30)
	ctx := context.Background()

	if err := store.Append(ctx, "user-1",
		ChatTurn{Role: chatRoleUser, Text: "hello"},
		ChatTurn{Role: chatRoleModel, Text: "hi there"},
	); err != nil {
		t.Fatalf("append: %v", err)
	}

	history, err := store.History(ctx, "user-1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(history))
	}
	if history[0].Role != chatRoleUser || history[0].Text != "hello" {
		t.Fatalf("unexpected first turn: %+v", history[0])
	}
	if history[1].Role != chatRoleModel || history[1].Text != "hi there" {
		t.Fatalf("unexpected second turn: %+v", history[1])
	}
}

func TestMemoryChatStoreIsolatesUsers(t *testing.T) {
	store := NewMemoryChatStore(30)
	ctx := context.Background()

	if err := store.Append(ctx, "user-a", ChatTurn{Role: chatRoleUser, Text: "a's message"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	history, err := store.History(ctx, "user-b")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history for user-b, got %d turns", len(history))
	}
}

func TestMemoryChatStoreBoundsHistory(t *testing.T) {
	store := NewMemoryChatStore(4)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		err := store.Append(ctx, "user-1",
			ChatTurn{Role: chatRoleUser, Text: fmt.Sprintf("q%d", i)},
			ChatTurn{Role: chatRoleModel, Text: fmt.Sprintf("a%d", i)},
		)
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	history, err := store.History(ctx, "user-1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("expected history capped at 4 turns, got %d", len(history))
	}
	if history[0].Text != "q8" || history[3].Text != "a9" {
		t.Fatalf("expected oldest turns evicted, got %+v", history)
	}
}

func TestMemoryChatStoreHistoryReturnsCopy(t *testing.T) {
	store := NewMemoryChatStore(30)
	ctx := context.Background()

	if err := store.Append(ctx, "user-1", ChatTurn{Role: chatRoleUser, Text: "original"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	history, _ := store.History(ctx, "user-1")
	history[0].Text = "mutated"

	fresh, _ := store.History(ctx, "user-1")
	if fresh[0].Text != "original" {
		t.Fatal("history must return a copy, not the backing slice")
	}
}

func TestMemoryChatStoreConcurrentAppends(t *testing.T) {
	store := NewMemoryChatStore(1000)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = store.Append(ctx, "shared-user", ChatTurn{Role: chatRoleUser, Text: fmt.Sprintf("g%d-%d", n, j)})
			}
		}(i)
	}
	wg.Wait()

	history, err := store.History(ctx, "shared-user")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 200 {
		t.Fatalf("expected 200 turns after concurrent appends, got %d", len(history))
	}
}
