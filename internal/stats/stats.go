// Package stats records and aggregates usage statistics: token usage,
// response times and per-model message counts.
package stats

import (
	"context"
	"fmt"
	"time"

	"alpaca/internal/metrics"
	"alpaca/internal/storage"
)

const (
	EventTokenUsage   = "token_usage"
	EventResponseTime = "response_time"
	EventModelUsage   = "model_usage"
)

type Service struct {
	store *storage.Store

	// now is swapped out in tests that need a fixed clock.
	now func() time.Time
}

func New(store *storage.Store) *Service {
	return &Service{store: store, now: time.Now}
}

func (s *Service) RecordTokenUsage(ctx context.Context, model string, tokens int) error {
	return s.record(ctx, EventTokenUsage, model, &tokens, nil)
}

func (s *Service) RecordResponseTime(ctx context.Context, model string, elapsed time.Duration) error {
	ms := int(elapsed.Milliseconds())
	return s.record(ctx, EventResponseTime, model, nil, &ms)
}

func (s *Service) RecordModelUsage(ctx context.Context, model string) error {
	return s.record(ctx, EventModelUsage, model, nil, nil)
}

func (s *Service) record(ctx context.Context, eventType, model string, tokens, responseMS *int) error {
	_, err := s.store.DB().ExecContext(ctx,
		"INSERT INTO statistics (id, event_type, model, tokens_used, response_time_ms, timestamp) VALUES (?, ?, ?, ?, ?, ?)",
		storage.NewID(), eventType, model, tokens, responseMS, storage.FormatTime(s.now()))
	if err != nil {
		return fmt.Errorf("record %s: %w", eventType, err)
	}
	metrics.Global().StatisticsRows.Inc()
	return nil
}

// TokenUsage summarizes recorded token counts inside the requested
// window, with a per-model breakdown. Prompt and completion splits are
// not tracked separately, so those fields stay zero.
type TokenUsage struct {
	TotalTokens      int
	PromptTokens     int
	CompletionTokens int
	EventCount       int
	ByModel          map[string]int
	PeriodStart      *time.Time
	PeriodEnd        *time.Time
}

func (s *Service) TokenUsage(ctx context.Context, from, to *time.Time) (TokenUsage, error) {
	sqlStr := "SELECT COALESCE(model, ''), COALESCE(SUM(tokens_used), 0), COUNT(*) FROM statistics WHERE event_type = ?"
	args := []any{EventTokenUsage}
	if from != nil {
		sqlStr += " AND timestamp >= ?"
		args = append(args, storage.FormatTime(*from))
	}
	if to != nil {
		sqlStr += " AND timestamp <= ?"
		args = append(args, storage.FormatTime(*to))
	}
	sqlStr += " GROUP BY model"

	rows, err := s.store.DB().QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return TokenUsage{}, fmt.Errorf("aggregate token usage: %w", err)
	}
	defer rows.Close()

	u := TokenUsage{ByModel: map[string]int{}, PeriodStart: from, PeriodEnd: to}
	for rows.Next() {
		var model string
		var tokens, count int
		if err := rows.Scan(&model, &tokens, &count); err != nil {
			return TokenUsage{}, fmt.Errorf("scan token usage row: %w", err)
		}
		if model == "" {
			model = "unknown"
		}
		u.ByModel[model] += tokens
		u.TotalTokens += tokens
		u.EventCount += count
	}
	if err := rows.Err(); err != nil {
		return TokenUsage{}, fmt.Errorf("iterate token usage rows: %w", err)
	}
	return u, nil
}

// ResponseTimes summarizes recorded response latencies in
// milliseconds. Model echoes the requested filter; the aggregate
// fields are zero when nothing was recorded.
type ResponseTimes struct {
	Model     string
	AverageMS float64
	MedianMS  float64
	MinMS     int
	MaxMS     int
	Count     int
}

// ResponseTimes aggregates latencies, optionally for a single model
// (empty means all models) and optionally only events at or after
// since.
func (s *Service) ResponseTimes(ctx context.Context, model string, since *time.Time) (ResponseTimes, error) {
	sqlStr := "SELECT response_time_ms FROM statistics WHERE event_type = ? AND response_time_ms IS NOT NULL"
	args := []any{EventResponseTime}
	if model != "" {
		sqlStr += " AND model = ?"
		args = append(args, model)
	}
	if since != nil {
		sqlStr += " AND timestamp >= ?"
		args = append(args, storage.FormatTime(*since))
	}
	sqlStr += " ORDER BY response_time_ms ASC"

	rows, err := s.store.DB().QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return ResponseTimes{}, fmt.Errorf("read response times: %w", err)
	}
	defer rows.Close()

	var samples []int
	for rows.Next() {
		var ms int
		if err := rows.Scan(&ms); err != nil {
			return ResponseTimes{}, fmt.Errorf("scan response time: %w", err)
		}
		samples = append(samples, ms)
	}
	if err := rows.Err(); err != nil {
		return ResponseTimes{}, fmt.Errorf("iterate response times: %w", err)
	}
	if len(samples) == 0 {
		return ResponseTimes{Model: model}, nil
	}

	rt := ResponseTimes{Model: model}
	rt.Count = len(samples)
	rt.MinMS = samples[0]
	rt.MaxMS = samples[len(samples)-1]
	sum := 0
	for _, ms := range samples {
		sum += ms
	}
	rt.AverageMS = float64(sum) / float64(len(samples))
	mid := len(samples) / 2
	if len(samples)%2 == 1 {
		rt.MedianMS = float64(samples[mid])
	} else {
		rt.MedianMS = float64(samples[mid-1]+samples[mid]) / 2
	}
	return rt, nil
}

// ModelCount is the usage count for one model.
type ModelCount struct {
	Model string
	Count int
}

// ModelUsage returns per-model usage counts, most used first, ties
// broken by model name.
func (s *Service) ModelUsage(ctx context.Context, since *time.Time) ([]ModelCount, error) {
	sqlStr := "SELECT COALESCE(model, ''), COUNT(*) FROM statistics WHERE event_type = ?"
	args := []any{EventModelUsage}
	if since != nil {
		sqlStr += " AND timestamp >= ?"
		args = append(args, storage.FormatTime(*since))
	}
	sqlStr += " GROUP BY model ORDER BY COUNT(*) DESC, model ASC"

	rows, err := s.store.DB().QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregate model usage: %w", err)
	}
	defer rows.Close()

	out := make([]ModelCount, 0)
	for rows.Next() {
		var mc ModelCount
		if err := rows.Scan(&mc.Model, &mc.Count); err != nil {
			return nil, fmt.Errorf("scan model usage row: %w", err)
		}
		out = append(out, mc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate model usage rows: %w", err)
	}
	return out, nil
}

// Clear deletes recorded statistics rows and reports how many were
// removed. With before set, only rows strictly older than the cutoff
// go.
func (s *Service) Clear(ctx context.Context, before *time.Time) (int, error) {
	sqlStr := "DELETE FROM statistics"
	args := []any{}
	if before != nil {
		sqlStr += " WHERE timestamp < ?"
		args = append(args, storage.FormatTime(*before))
	}
	res, err := s.store.DB().ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, fmt.Errorf("clear statistics: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count cleared statistics: %w", err)
	}
	return int(n), nil
}
