package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

func (s *Store) UpsertPrompt(ctx context.Context, p Prompt) error {
	q := s.sql.Insert("prompt").
		Columns("id", "name", "content", "category", "created_at").
		Values(p.ID, p.Name, p.Content, p.Category, p.CreatedAt).
		Suffix("ON CONFLICT(id) DO UPDATE SET name=excluded.name, content=excluded.content, category=excluded.category")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build prompt upsert query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("upsert prompt: %w", err)
	}
	return nil
}

func (s *Store) GetPrompt(ctx context.Context, id string) (Prompt, error) {
	q := s.sql.Select("id", "name", "content", "category", "created_at").
		From("prompt").
		Where(sq.Eq{"id": id})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return Prompt{}, fmt.Errorf("build get prompt query: %w", err)
	}

	var p Prompt
	var category sql.NullString
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&p.ID, &p.Name, &p.Content, &category, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Prompt{}, ErrNotFound
		}
		return Prompt{}, fmt.Errorf("get prompt: %w", err)
	}
	if category.Valid {
		p.Category = &category.String
	}
	return p, nil
}

// ListPrompts returns prompts, optionally filtered by category, newest
// first.
func (s *Store) ListPrompts(ctx context.Context, category *string) ([]Prompt, error) {
	q := s.sql.Select("id", "name", "content", "category", "created_at").
		From("prompt").
		OrderBy("created_at DESC", "id DESC")
	if category != nil {
		q = q.Where(sq.Eq{"category": *category})
	}
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list prompts query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	defer rows.Close()

	out := make([]Prompt, 0)
	for rows.Next() {
		var p Prompt
		var cat sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &p.Content, &cat, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan prompt row: %w", err)
		}
		if cat.Valid {
			p.Category = &cat.String
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prompt rows: %w", err)
	}
	return out, nil
}

func (s *Store) DeletePrompt(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM prompt WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete prompt: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// BookmarkMessage bookmarks a message. Bookmarking twice is a no-op
// that returns the existing bookmark ID.
func (s *Store) BookmarkMessage(ctx context.Context, messageID string) (string, error) {
	var existing string
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM bookmark WHERE message_id = ?", messageID).Scan(&existing)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("check existing bookmark: %w", err)
	}

	id := NewID()
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO bookmark (id, message_id, created_at) VALUES (?, ?, ?)",
		id, messageID, FormatTime(nowFunc())); err != nil {
		return "", fmt.Errorf("insert bookmark: %w", err)
	}
	return id, nil
}

func (s *Store) UnbookmarkMessage(ctx context.Context, messageID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM bookmark WHERE message_id = ?", messageID)
	if err != nil {
		return fmt.Errorf("delete bookmark: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) IsMessageBookmarked(ctx context.Context, messageID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM bookmark WHERE message_id = ?", messageID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check bookmark: %w", err)
	}
	return n > 0, nil
}

// ListBookmarks returns every bookmark joined with its message and
// chat, newest bookmark first. Bookmarks whose message was deleted are
// skipped.
func (s *Store) ListBookmarks(ctx context.Context) ([]BookmarkedMessage, error) {
	q := s.sql.Select("bookmark.id", "message.id", "message.chat_id", "chat.name", "message.content", "bookmark.created_at").
		From("bookmark").
		Join("message ON bookmark.message_id = message.id").
		Join("chat ON message.chat_id = chat.id").
		OrderBy("bookmark.created_at DESC", "bookmark.id DESC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list bookmarks query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	defer rows.Close()

	out := make([]BookmarkedMessage, 0)
	for rows.Next() {
		var b BookmarkedMessage
		if err := rows.Scan(&b.BookmarkID, &b.MessageID, &b.ChatID, &b.ChatName, &b.Content, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan bookmark row: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookmark rows: %w", err)
	}
	return out, nil
}
