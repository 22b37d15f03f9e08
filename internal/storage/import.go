package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// ExportChat writes a chat plus its messages and attachments into a
// standalone SQLite file at destPath, suitable for ImportChats on
// another database. ATTACH is per-connection state, so the whole
// operation runs on a single pinned connection.
func (s *Store) ExportChat(ctx context.Context, chatID, destPath string) error {
	if _, err := s.GetChat(ctx, chatID); err != nil {
		return err
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("pin connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "ATTACH DATABASE ? AS export", destPath); err != nil {
		return fmt.Errorf("attach export db: %w", err)
	}
	defer conn.ExecContext(ctx, "DETACH DATABASE export")

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin export: %w", err)
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS export.chat (
			id TEXT NOT NULL PRIMARY KEY, name TEXT NOT NULL,
			folder TEXT, is_template INTEGER NOT NULL DEFAULT 0)`,
		`CREATE TABLE IF NOT EXISTS export.message (
			id TEXT NOT NULL PRIMARY KEY, chat_id TEXT NOT NULL,
			role TEXT NOT NULL, model TEXT, date_time DATETIME NOT NULL,
			content TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS export.attachment (
			id TEXT NOT NULL PRIMARY KEY, message_id TEXT NOT NULL,
			type TEXT NOT NULL, name TEXT NOT NULL, content TEXT NOT NULL)`,
		// Folder membership is local to the source database.
		"INSERT INTO export.chat (id, name, folder, is_template) SELECT id, name, NULL, is_template FROM chat WHERE id = ?",
		"INSERT INTO export.message SELECT * FROM message WHERE chat_id = ?",
		"INSERT INTO export.attachment SELECT * FROM attachment WHERE message_id IN (SELECT id FROM message WHERE chat_id = ?)",
	}
	for _, stmt := range stmts[:3] {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create export table: %w", err)
		}
	}
	for _, stmt := range stmts[3:] {
		if _, err := tx.ExecContext(ctx, stmt, chatID); err != nil {
			return fmt.Errorf("copy export rows: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit export: %w", err)
	}
	return nil
}

type importedChat struct {
	chat        Chat
	messages    []Message
	attachments []Attachment
}

// ImportChats reads every chat from the SQLite file at srcPath and
// inserts them, rewriting names and IDs that collide with existing
// rows. It returns the imported chats' final IDs.
func (s *Store) ImportChats(ctx context.Context, srcPath string) ([]string, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("pin connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "ATTACH DATABASE ? AS import", srcPath); err != nil {
		return nil, fmt.Errorf("attach import db: %w", err)
	}
	defer conn.ExecContext(ctx, "DETACH DATABASE import")

	chats, err := readImportedChats(ctx, conn)
	if err != nil {
		return nil, err
	}
	if len(chats) == 0 {
		return nil, nil
	}

	// The pool is capped at one connection and we hold it, so the name
	// query has to go through the pinned conn.
	existingNames, err := chatNamesOn(ctx, conn)
	if err != nil {
		return nil, err
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	var importedIDs []string
	for i := range chats {
		ic := &chats[i]

		ic.chat.Name = NumberedName(ic.chat.Name, existingNames)
		existingNames = append(existingNames, ic.chat.Name)

		if err := resolveCollisions(ctx, tx, ic); err != nil {
			return nil, err
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO chat (id, name, folder, is_template) VALUES (?, ?, NULL, ?)",
			ic.chat.ID, ic.chat.Name, ic.chat.IsTemplate); err != nil {
			return nil, fmt.Errorf("insert imported chat: %w", err)
		}
		for _, m := range ic.messages {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO message (id, chat_id, role, model, date_time, content) VALUES (?, ?, ?, ?, ?, ?)",
				m.ID, m.ChatID, m.Role, m.Model, m.DateTime, m.Content); err != nil {
				return nil, fmt.Errorf("insert imported message: %w", err)
			}
		}
		for _, a := range ic.attachments {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO attachment (id, message_id, type, name, content) VALUES (?, ?, ?, ?, ?)",
				a.ID, a.MessageID, a.Type, a.Name, a.Content); err != nil {
				return nil, fmt.Errorf("insert imported attachment: %w", err)
			}
		}
		importedIDs = append(importedIDs, ic.chat.ID)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit import: %w", err)
	}
	return importedIDs, nil
}

func chatNamesOn(ctx context.Context, conn *sql.Conn) ([]string, error) {
	rows, err := conn.QueryContext(ctx, "SELECT name FROM chat")
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

func readImportedChats(ctx context.Context, conn *sql.Conn) ([]importedChat, error) {
	chatRows, err := conn.QueryContext(ctx, "SELECT id, name, is_template FROM import.chat")
	if err != nil {
		return nil, fmt.Errorf("read imported chats: %w", err)
	}
	var chats []importedChat
	for chatRows.Next() {
		var ic importedChat
		if err := chatRows.Scan(&ic.chat.ID, &ic.chat.Name, &ic.chat.IsTemplate); err != nil {
			chatRows.Close()
			return nil, fmt.Errorf("scan imported chat: %w", err)
		}
		chats = append(chats, ic)
	}
	if err := chatRows.Err(); err != nil {
		chatRows.Close()
		return nil, fmt.Errorf("iterate imported chats: %w", err)
	}
	chatRows.Close()

	for i := range chats {
		ic := &chats[i]

		msgRows, err := conn.QueryContext(ctx,
			"SELECT id, chat_id, role, model, date_time, content FROM import.message WHERE chat_id = ?", ic.chat.ID)
		if err != nil {
			return nil, fmt.Errorf("read imported messages: %w", err)
		}
		for msgRows.Next() {
			var m Message
			var model sql.NullString
			if err := msgRows.Scan(&m.ID, &m.ChatID, &m.Role, &model, &m.DateTime, &m.Content); err != nil {
				msgRows.Close()
				return nil, fmt.Errorf("scan imported message: %w", err)
			}
			m.Model = model.String
			ic.messages = append(ic.messages, m)
		}
		if err := msgRows.Err(); err != nil {
			msgRows.Close()
			return nil, fmt.Errorf("iterate imported messages: %w", err)
		}
		msgRows.Close()

		attRows, err := conn.QueryContext(ctx,
			"SELECT id, message_id, type, name, content FROM import.attachment WHERE message_id IN (SELECT id FROM import.message WHERE chat_id = ?)", ic.chat.ID)
		if err != nil {
			return nil, fmt.Errorf("read imported attachments: %w", err)
		}
		for attRows.Next() {
			var a Attachment
			if err := attRows.Scan(&a.ID, &a.MessageID, &a.Type, &a.Name, &a.Content); err != nil {
				attRows.Close()
				return nil, fmt.Errorf("scan imported attachment: %w", err)
			}
			ic.attachments = append(ic.attachments, a)
		}
		if err := attRows.Err(); err != nil {
			attRows.Close()
			return nil, fmt.Errorf("iterate imported attachments: %w", err)
		}
		attRows.Close()
	}

	return chats, nil
}

// resolveCollisions rewrites any imported ID already present in the
// target database, cascading the new ID through dependent rows.
func resolveCollisions(ctx context.Context, tx *sql.Tx, ic *importedChat) error {
	taken, err := idExists(ctx, tx, "chat", ic.chat.ID)
	if err != nil {
		return err
	}
	if taken {
		newID := NewID()
		for i := range ic.messages {
			ic.messages[i].ChatID = newID
		}
		ic.chat.ID = newID
	}

	for i := range ic.messages {
		taken, err := idExists(ctx, tx, "message", ic.messages[i].ID)
		if err != nil {
			return err
		}
		if !taken {
			continue
		}
		newID := NewID()
		for j := range ic.attachments {
			if ic.attachments[j].MessageID == ic.messages[i].ID {
				ic.attachments[j].MessageID = newID
			}
		}
		ic.messages[i].ID = newID
	}

	for i := range ic.attachments {
		taken, err := idExists(ctx, tx, "attachment", ic.attachments[i].ID)
		if err != nil {
			return err
		}
		if taken {
			ic.attachments[i].ID = NewID()
		}
	}
	return nil
}

func idExists(ctx context.Context, tx *sql.Tx, table, id string) (bool, error) {
	var n int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+" WHERE id = ?", id).Scan(&n); err != nil {
		return false, fmt.Errorf("check %s id: %w", table, err)
	}
	return n > 0, nil
}
