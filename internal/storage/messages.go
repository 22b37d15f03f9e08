package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

func (s *Store) InsertMessage(ctx context.Context, m Message) error {
	q := s.sql.Insert("message").
		Columns("id", "chat_id", "role", "model", "date_time", "content").
		Values(m.ID, m.ChatID, m.Role, m.Model, m.DateTime, m.Content).
		Suffix("ON CONFLICT(id) DO UPDATE SET chat_id=excluded.chat_id, role=excluded.role, model=excluded.model, date_time=excluded.date_time, content=excluded.content")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build message insert query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// UpdateMessageContent replaces the content of an existing message,
// used when a streamed response finishes or the user edits a message.
func (s *Store) UpdateMessageContent(ctx context.Context, messageID, content string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE message SET content = ? WHERE id = ?", content, messageID)
	if err != nil {
		return fmt.Errorf("update message content: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) GetMessage(ctx context.Context, id string) (Message, error) {
	q := s.sql.Select("id", "chat_id", "role", "model", "date_time", "content").
		From("message").
		Where(sq.Eq{"id": id})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return Message{}, fmt.Errorf("build get message query: %w", err)
	}

	var m Message
	var model sql.NullString
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&m.ID, &m.ChatID, &m.Role, &model, &m.DateTime, &m.Content); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Message{}, ErrNotFound
		}
		return Message{}, fmt.Errorf("get message: %w", err)
	}
	m.Model = model.String
	return m, nil
}

// ListMessages returns a chat's messages in chronological order.
// limit <= 0 means no limit; offset counts from the start of the chat.
func (s *Store) ListMessages(ctx context.Context, chatID string, limit, offset int) ([]Message, error) {
	q := s.sql.Select("id", "chat_id", "role", "model", "date_time", "content").
		From("message").
		Where(sq.Eq{"chat_id": chatID}).
		OrderBy("date_time ASC", "id ASC")
	if limit > 0 {
		q = q.Limit(uint64(limit)).Offset(uint64(offset))
	}
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list messages query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	out := make([]Message, 0)
	for rows.Next() {
		var m Message
		var model sql.NullString
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &model, &m.DateTime, &m.Content); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		m.Model = model.String
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}
	return out, nil
}

func (s *Store) CountMessages(ctx context.Context, chatID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM message WHERE chat_id = ?", chatID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

// DeleteMessage removes a message together with its attachments.
func (s *Store) DeleteMessage(ctx context.Context, messageID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete message: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM attachment WHERE message_id = ?", messageID); err != nil {
		return fmt.Errorf("delete message attachments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM message WHERE id = ?", messageID); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete message: %w", err)
	}
	return nil
}

func (s *Store) InsertAttachment(ctx context.Context, a Attachment) error {
	q := s.sql.Insert("attachment").
		Columns("id", "message_id", "type", "name", "content").
		Values(a.ID, a.MessageID, a.Type, a.Name, a.Content).
		Suffix("ON CONFLICT(id) DO UPDATE SET message_id=excluded.message_id, type=excluded.type, name=excluded.name, content=excluded.content")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build attachment insert query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("insert attachment: %w", err)
	}
	return nil
}

func (s *Store) ListAttachments(ctx context.Context, messageID string) ([]Attachment, error) {
	q := s.sql.Select("id", "message_id", "type", "name", "content").
		From("attachment").
		Where(sq.Eq{"message_id": messageID}).
		OrderBy("id ASC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list attachments query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	out := make([]Attachment, 0)
	for rows.Next() {
		var a Attachment
		if err := rows.Scan(&a.ID, &a.MessageID, &a.Type, &a.Name, &a.Content); err != nil {
			return nil, fmt.Errorf("scan attachment row: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attachment rows: %w", err)
	}
	return out, nil
}
