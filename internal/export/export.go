// Package export renders chats to human-readable formats.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"alpaca/internal/storage"
)

type Service struct {
	store *storage.Store

	// now stamps export_metadata; swapped out in tests.
	now func() time.Time
}

func New(store *storage.Store) *Service {
	return &Service{store: store, now: time.Now}
}

// ToMarkdown renders a chat as a Markdown transcript: the chat name as
// a heading, then each message under a role heading with model and
// timestamp.
func (s *Service) ToMarkdown(ctx context.Context, chatID string) (string, error) {
	chat, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return "", err
	}
	messages, err := s.store.ListMessages(ctx, chatID, 0, 0)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", chat.Name)
	for _, m := range messages {
		switch m.Role {
		case storage.RoleAssistant:
			if m.Model != "" {
				fmt.Fprintf(&b, "## Assistant (%s)\n\n", m.Model)
			} else {
				b.WriteString("## Assistant\n\n")
			}
		case storage.RoleSystem:
			b.WriteString("## System\n\n")
		default:
			b.WriteString("## User\n\n")
		}
		fmt.Fprintf(&b, "*%s*\n\n", m.DateTime)
		b.WriteString(m.Content)
		b.WriteString("\n\n")

		attachments, err := s.store.ListAttachments(ctx, m.ID)
		if err != nil {
			return "", err
		}
		for _, a := range attachments {
			fmt.Fprintf(&b, "> Attachment: %s (%s)\n\n", a.Name, a.Type)
		}
		b.WriteString("---\n\n")
	}
	return b.String(), nil
}

type jsonAttachment struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content,omitempty"`
}

type jsonMessage struct {
	ID          string           `json:"id,omitempty"`
	Role        string           `json:"role"`
	Model       string           `json:"model,omitempty"`
	DateTime    string           `json:"date_time,omitempty"`
	Content     string           `json:"content"`
	Attachments []jsonAttachment `json:"attachments,omitempty"`
}

type jsonExportMetadata struct {
	ExportedAt string `json:"exported_at"`
	Version    string `json:"version"`
}

type jsonChat struct {
	ID             string              `json:"id,omitempty"`
	Name           string              `json:"name"`
	Messages       []jsonMessage       `json:"messages"`
	ExportMetadata *jsonExportMetadata `json:"export_metadata,omitempty"`
}

// ToJSON renders a chat as indented JSON. With includeMetadata false,
// IDs and timestamps are omitted so the output carries only the
// conversation itself; with it, an export_metadata trailer records
// when the export was made.
func (s *Service) ToJSON(ctx context.Context, chatID string, includeMetadata bool) (string, error) {
	chat, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return "", err
	}
	messages, err := s.store.ListMessages(ctx, chatID, 0, 0)
	if err != nil {
		return "", err
	}

	out := jsonChat{Name: chat.Name, Messages: make([]jsonMessage, 0, len(messages))}
	if includeMetadata {
		out.ID = chat.ID
		out.ExportMetadata = &jsonExportMetadata{
			ExportedAt: storage.FormatTime(s.now()),
			Version:    "1.0",
		}
	}
	for _, m := range messages {
		jm := jsonMessage{Role: m.Role, Content: m.Content}
		if includeMetadata {
			jm.ID = m.ID
			jm.Model = m.Model
			jm.DateTime = m.DateTime
		}
		attachments, err := s.store.ListAttachments(ctx, m.ID)
		if err != nil {
			return "", err
		}
		for _, a := range attachments {
			ja := jsonAttachment{Type: a.Type, Name: a.Name}
			if includeMetadata {
				ja.Content = a.Content
			}
			jm.Attachments = append(jm.Attachments, ja)
		}
		out.Messages = append(out.Messages, jm)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal chat: %w", err)
	}
	return string(data), nil
}

// ChatList renders all chats grouped at the root level as a Markdown
// listing with message counts.
func (s *Service) ChatList(ctx context.Context) (string, error) {
	chats, err := s.store.ListChatsByFolder(ctx, nil)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("# Chats\n\n")
	for _, c := range chats {
		count, err := s.store.CountMessages(ctx, c.ID)
		if err != nil {
			return "", err
		}
		last := "no messages"
		if c.LastMessageAt != nil {
			last = *c.LastMessageAt
		}
		fmt.Fprintf(&b, "- %s (%d messages, last: %s)\n", c.Name, count, last)
	}
	return b.String(), nil
}
