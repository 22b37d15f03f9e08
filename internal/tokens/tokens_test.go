package tokens

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"alpaca/internal/storage"
)

func TestEstimate(t *testing.T) {
	cases := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"whitespace only", "   \n\t  ", 0},
		{"short word floors to one", "hi", 1},
		{"eight chars", "12345678", 2},
		{"whitespace collapsed", "a    b\n\nc", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Estimate(tc.text); got != tc.want {
				t.Fatalf("Estimate(%q) = %d, want %d", tc.text, got, tc.want)
			}
		})
	}
}

func TestEstimateCountsRunes(t *testing.T) {
	// 8 runes of multibyte text is 2 tokens regardless of byte length.
	if got := Estimate("ééééééé é"); got != 2 {
		t.Fatalf("expected 2 tokens for 9 runes, got %d", got)
	}
}

func TestEstimateChat(t *testing.T) {
	ctx := context.Background()
	store, err := storage.Open(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	if err := store.UpsertChat(ctx, storage.Chat{ID: "c1", Name: "Chat"}); err != nil {
		t.Fatalf("upsert chat: %v", err)
	}
	now := storage.FormatTime(time.Now())
	msgs := []storage.Message{
		{ID: "m1", ChatID: "c1", Role: storage.RoleUser, DateTime: now, Content: "12345678"},                  // 2 tokens
		{ID: "m2", ChatID: "c1", Role: storage.RoleAssistant, DateTime: now, Content: "1234567890123456"},     // 4 tokens
		{ID: "m3", ChatID: "c1", Role: storage.RoleSystem, DateTime: now, Content: "1234"},                    // 1 token, counts as user side
	}
	for _, m := range msgs {
		if err := store.InsertMessage(ctx, m); err != nil {
			t.Fatalf("insert message: %v", err)
		}
	}

	usage, err := EstimateChat(ctx, store, "c1")
	if err != nil {
		t.Fatalf("estimate chat: %v", err)
	}
	if usage.UserTokens != 3 || usage.AssistantTokens != 4 || usage.TotalTokens != 7 || usage.MessageCount != 3 {
		t.Fatalf("unexpected usage: %+v", usage)
	}
}

func TestEstimateChatEmpty(t *testing.T) {
	ctx := context.Background()
	store, err := storage.Open(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	if err := store.UpsertChat(ctx, storage.Chat{ID: "c1", Name: "Empty"}); err != nil {
		t.Fatalf("upsert chat: %v", err)
	}
	usage, err := EstimateChat(ctx, store, "c1")
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if usage != (ChatUsage{}) {
		t.Fatalf("expected zero usage, got %+v", usage)
	}
}
