// Package tokens estimates token counts for chat content. The
// heuristic is one token per four characters of whitespace-normalized
// text, which tracks real tokenizers closely enough for usage display.
package tokens

import (
	"context"
	"strings"

	"alpaca/internal/storage"
)

// Estimate returns the approximate token count for text. Any non-empty
// text counts as at least one token.
func Estimate(text string) int {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0
	}
	normalized := strings.Join(fields, " ")
	n := len([]rune(normalized)) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// ChatUsage is the estimated token breakdown for one chat.
type ChatUsage struct {
	UserTokens      int
	AssistantTokens int
	TotalTokens     int
	MessageCount    int
}

// EstimateChat sums token estimates over every message in a chat.
func EstimateChat(ctx context.Context, store *storage.Store, chatID string) (ChatUsage, error) {
	messages, err := store.ListMessages(ctx, chatID, 0, 0)
	if err != nil {
		return ChatUsage{}, err
	}

	var u ChatUsage
	for _, m := range messages {
		n := Estimate(m.Content)
		switch m.Role {
		case storage.RoleAssistant:
			u.AssistantTokens += n
		default:
			u.UserTokens += n
		}
		u.TotalTokens += n
		u.MessageCount++
	}
	return u, nil
}
