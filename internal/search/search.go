// Package search implements cross-chat full-text search over message
// content with relevance scoring and context previews.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"alpaca/internal/metrics"
	"alpaca/internal/storage"
)

// DefaultContextChars is the preview window size on each side of the
// first match.
const DefaultContextChars = 50

// Result is a single matching message with its relevance score and a
// context preview around the first occurrence of the query.
type Result struct {
	MessageID string
	ChatID    string
	ChatName  string
	Role      string
	DateTime  string
	Content   string
	Score     float64
	Preview   string
}

type Service struct {
	store        *storage.Store
	contextChars int
}

func New(store *storage.Store, contextChars int) *Service {
	if contextChars <= 0 {
		contextChars = DefaultContextChars
	}
	return &Service{store: store, contextChars: contextChars}
}

// SearchAllChats finds messages whose content contains query
// (case-insensitive), optionally restricted to a date range. Results
// are ordered by score descending, then recency, then message ID.
// An empty or whitespace-only query returns no results.
func (s *Service) SearchAllChats(ctx context.Context, query string, dateFrom, dateTo *time.Time) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	metrics.Global().SearchQueries.Inc()

	sqlStr := `SELECT m.id, m.chat_id, c.name, m.role, m.date_time, m.content
		FROM message m JOIN chat c ON m.chat_id = c.id
		WHERE instr(lower(m.content), ?) > 0`
	args := []any{strings.ToLower(query)}
	if dateFrom != nil {
		sqlStr += " AND m.date_time >= ?"
		args = append(args, storage.FormatTime(*dateFrom))
	}
	if dateTo != nil {
		sqlStr += " AND m.date_time <= ?"
		args = append(args, storage.FormatTime(*dateTo))
	}

	rows, err := s.store.DB().QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.MessageID, &r.ChatID, &r.ChatName, &r.Role, &r.DateTime, &r.Content); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		r.Score = score(r.Content, query)
		r.Preview = Preview(r.Content, query, s.contextChars)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].DateTime != results[j].DateTime {
			return results[i].DateTime > results[j].DateTime
		}
		return results[i].MessageID < results[j].MessageID
	})
	return results, nil
}

// score rates a match in [0,1]: 70% for how early the first occurrence
// appears and 30% for occurrence count, saturating at five.
func score(content, query string) float64 {
	lc := strings.ToLower(content)
	lq := strings.ToLower(query)

	idx := strings.Index(lc, lq)
	if idx < 0 {
		return 0
	}
	positionFactor := 1.0
	if len(lc) > 0 {
		positionFactor = 1.0 - float64(idx)/float64(len(lc))
	}

	count := strings.Count(lc, lq)
	if count > 5 {
		count = 5
	}

	s := 0.7*positionFactor + 0.3*float64(count)/5.0
	if s < 0 {
		s = 0
	}
	if s > 1 {
		s = 1
	}
	return s
}

// Preview extracts a window of roughly contextChars runes on each side
// of the first occurrence of query, never splitting the matched span,
// with ellipses marking truncation. If query does not occur, the
// content head is returned.
func Preview(content, query string, contextChars int) string {
	runes := []rune(content)
	lcRunes := []rune(strings.ToLower(content))
	lqRunes := []rune(strings.ToLower(query))

	matchStart := runeIndex(lcRunes, lqRunes)
	if matchStart < 0 {
		if len(runes) <= 2*contextChars {
			return content
		}
		return string(runes[:2*contextChars]) + "..."
	}
	matchEnd := matchStart + len(lqRunes)

	start := matchStart - contextChars
	if start < 0 {
		start = 0
	}
	end := matchEnd + contextChars
	if end > len(runes) {
		end = len(runes)
	}

	preview := string(runes[start:end])
	if start > 0 {
		preview = "..." + preview
	}
	if end < len(runes) {
		preview += "..."
	}
	return preview
}

func runeIndex(haystack, needle []rune) int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return -1
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
