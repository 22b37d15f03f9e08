package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

var ErrNotFound = errors.New("not found")

func (s *Store) UpsertChat(ctx context.Context, c Chat) error {
	q := s.sql.Insert("chat").
		Columns("id", "name", "folder", "is_template").
		Values(c.ID, c.Name, c.Folder, c.IsTemplate).
		Suffix("ON CONFLICT(id) DO UPDATE SET name=excluded.name, folder=excluded.folder, is_template=excluded.is_template")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build chat upsert query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("upsert chat: %w", err)
	}
	return nil
}

func (s *Store) GetChat(ctx context.Context, id string) (Chat, error) {
	q := s.sql.Select("id", "name", "folder", "is_template").
		From("chat").
		Where(sq.Eq{"id": id})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return Chat{}, fmt.Errorf("build get chat query: %w", err)
	}

	var c Chat
	var folder sql.NullString
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&c.ID, &c.Name, &folder, &c.IsTemplate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Chat{}, ErrNotFound
		}
		return Chat{}, fmt.Errorf("get chat: %w", err)
	}
	if folder.Valid {
		c.Folder = &folder.String
	}
	return c, nil
}

// ListChatsByFolder returns chats in the given folder (nil means the
// root level), most recently active first.
func (s *Store) ListChatsByFolder(ctx context.Context, folderID *string) ([]ChatListItem, error) {
	q := s.sql.Select("chat.id", "chat.name", "chat.is_template", "MAX(message.date_time) AS last_message_time").
		From("chat").
		LeftJoin("message ON chat.id = message.chat_id").
		Where(sq.Eq{"chat.folder": folderID}).
		GroupBy("chat.id").
		OrderBy("last_message_time DESC")
	return s.listChats(ctx, q)
}

// ListTemplates returns chats flagged as templates, most recently
// active first.
func (s *Store) ListTemplates(ctx context.Context) ([]ChatListItem, error) {
	q := s.sql.Select("chat.id", "chat.name", "chat.is_template", "MAX(message.date_time) AS last_message_time").
		From("chat").
		LeftJoin("message ON chat.id = message.chat_id").
		Where(sq.Eq{"chat.is_template": 1}).
		GroupBy("chat.id").
		OrderBy("last_message_time DESC")
	return s.listChats(ctx, q)
}

func (s *Store) listChats(ctx context.Context, q sq.SelectBuilder) ([]ChatListItem, error) {
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list chats query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	out := make([]ChatListItem, 0)
	for rows.Next() {
		var item ChatListItem
		var last sql.NullString
		if err := rows.Scan(&item.ID, &item.Name, &item.IsTemplate, &last); err != nil {
			return nil, fmt.Errorf("scan chat row: %w", err)
		}
		if last.Valid {
			item.LastMessageAt = &last.String
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat rows: %w", err)
	}
	return out, nil
}

// ChatNames returns the names of all chats, used for numbered-name
// disambiguation on import.
func (s *Store) ChatNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM chat")
	if err != nil {
		return nil, fmt.Errorf("list chat names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan chat name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat names: %w", err)
	}
	return names, nil
}

// DeleteChat removes a chat, its messages and their attachments in a
// single transaction. The schema has no foreign keys, so the cascade is
// explicit.
func (s *Store) DeleteChat(ctx context.Context, chatID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete chat: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM attachment WHERE message_id IN (SELECT id FROM message WHERE chat_id = ?)", chatID); err != nil {
		return fmt.Errorf("delete chat attachments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM message WHERE chat_id = ?", chatID); err != nil {
		return fmt.Errorf("delete chat messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM chat WHERE id = ?", chatID); err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete chat: %w", err)
	}
	return nil
}

// DuplicateChat copies every message and attachment of oldChatID into
// newChat under freshly generated IDs.
func (s *Store) DuplicateChat(ctx context.Context, oldChatID string, newChat Chat) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin duplicate chat: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO chat (id, name, folder, is_template) VALUES (?, ?, ?, ?)",
		newChat.ID, newChat.Name, newChat.Folder, newChat.IsTemplate); err != nil {
		return fmt.Errorf("insert duplicated chat: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		"SELECT id, role, model, date_time, content FROM message WHERE chat_id = ?", oldChatID)
	if err != nil {
		return fmt.Errorf("read source messages: %w", err)
	}
	type srcMessage struct {
		oldID string
		m     Message
	}
	var src []srcMessage
	for rows.Next() {
		var sm srcMessage
		var model sql.NullString
		if err := rows.Scan(&sm.oldID, &sm.m.Role, &model, &sm.m.DateTime, &sm.m.Content); err != nil {
			rows.Close()
			return fmt.Errorf("scan source message: %w", err)
		}
		sm.m.Model = model.String
		src = append(src, sm)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate source messages: %w", err)
	}
	rows.Close()

	for _, sm := range src {
		newMessageID := NewID()
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO message (id, chat_id, role, model, date_time, content) VALUES (?, ?, ?, ?, ?, ?)",
			newMessageID, newChat.ID, sm.m.Role, sm.m.Model, sm.m.DateTime, sm.m.Content); err != nil {
			return fmt.Errorf("insert duplicated message: %w", err)
		}

		attRows, err := tx.QueryContext(ctx,
			"SELECT type, name, content FROM attachment WHERE message_id = ?", sm.oldID)
		if err != nil {
			return fmt.Errorf("read source attachments: %w", err)
		}
		var atts []Attachment
		for attRows.Next() {
			var a Attachment
			if err := attRows.Scan(&a.Type, &a.Name, &a.Content); err != nil {
				attRows.Close()
				return fmt.Errorf("scan source attachment: %w", err)
			}
			atts = append(atts, a)
		}
		if err := attRows.Err(); err != nil {
			attRows.Close()
			return fmt.Errorf("iterate source attachments: %w", err)
		}
		attRows.Close()

		for _, a := range atts {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO attachment (id, message_id, type, name, content) VALUES (?, ?, ?, ?, ?)",
				NewID(), newMessageID, a.Type, a.Name, a.Content); err != nil {
				return fmt.Errorf("insert duplicated attachment: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit duplicate chat: %w", err)
	}
	return nil
}

// FactoryReset deletes every chat, folder, message and attachment.
func (s *Store) FactoryReset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin factory reset: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"chat_folder", "chat", "message", "attachment"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("factory reset %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit factory reset: %w", err)
	}
	return nil
}

func (s *Store) UpsertFolder(ctx context.Context, f ChatFolder) error {
	q := s.sql.Insert("chat_folder").
		Columns("id", "name", "color", "parent").
		Values(f.ID, f.Name, f.Color, f.Parent).
		Suffix("ON CONFLICT(id) DO UPDATE SET name=excluded.name, color=excluded.color, parent=excluded.parent")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build folder upsert query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("upsert folder: %w", err)
	}
	return nil
}

// ListFolders returns the folders directly under parentID (nil means
// top level).
func (s *Store) ListFolders(ctx context.Context, parentID *string) ([]ChatFolder, error) {
	q := s.sql.Select("id", "name", "color", "parent").
		From("chat_folder").
		Where(sq.Eq{"parent": parentID}).
		OrderBy("name ASC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list folders query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	out := make([]ChatFolder, 0)
	for rows.Next() {
		var f ChatFolder
		var color, parent sql.NullString
		if err := rows.Scan(&f.ID, &f.Name, &color, &parent); err != nil {
			return nil, fmt.Errorf("scan folder row: %w", err)
		}
		if color.Valid {
			f.Color = &color.String
		}
		if parent.Valid {
			f.Parent = &parent.String
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folder rows: %w", err)
	}
	return out, nil
}

func (s *Store) MoveFolder(ctx context.Context, folderID string, parentID *string) error {
	q := s.sql.Update("chat_folder").
		Set("parent", parentID).
		Where(sq.Eq{"id": folderID})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build move folder query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("move folder: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteFolder removes a folder, every chat inside it (cascading to
// messages and attachments) and all of its subfolders recursively.
func (s *Store) DeleteFolder(ctx context.Context, folderID string) error {
	chatRows, err := s.db.QueryContext(ctx, "SELECT id FROM chat WHERE folder = ?", folderID)
	if err != nil {
		return fmt.Errorf("list folder chats: %w", err)
	}
	var chatIDs []string
	for chatRows.Next() {
		var id string
		if err := chatRows.Scan(&id); err != nil {
			chatRows.Close()
			return fmt.Errorf("scan folder chat: %w", err)
		}
		chatIDs = append(chatIDs, id)
	}
	if err := chatRows.Err(); err != nil {
		chatRows.Close()
		return fmt.Errorf("iterate folder chats: %w", err)
	}
	chatRows.Close()

	subRows, err := s.db.QueryContext(ctx, "SELECT id FROM chat_folder WHERE parent = ?", folderID)
	if err != nil {
		return fmt.Errorf("list subfolders: %w", err)
	}
	var subIDs []string
	for subRows.Next() {
		var id string
		if err := subRows.Scan(&id); err != nil {
			subRows.Close()
			return fmt.Errorf("scan subfolder: %w", err)
		}
		subIDs = append(subIDs, id)
	}
	if err := subRows.Err(); err != nil {
		subRows.Close()
		return fmt.Errorf("iterate subfolders: %w", err)
	}
	subRows.Close()

	for _, id := range chatIDs {
		if err := s.DeleteChat(ctx, id); err != nil {
			return err
		}
	}
	for _, id := range subIDs {
		if err := s.DeleteFolder(ctx, id); err != nil {
			return err
		}
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM chat_folder WHERE id = ?", folderID); err != nil {
		return fmt.Errorf("delete folder: %w", err)
	}
	return nil
}
