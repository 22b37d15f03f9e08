package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := testStore(t)
	dst := testStore(t)

	mustUpsertChat(t, src, Chat{ID: "c1", Name: "Travel plans"})
	mustInsertMessage(t, src, Message{ID: "m1", ChatID: "c1", Role: RoleUser, DateTime: FormatTime(time.Now()), Content: "Where to go?"})
	mustInsertMessage(t, src, Message{ID: "m2", ChatID: "c1", Role: RoleAssistant, Model: "llama3", DateTime: FormatTime(time.Now()), Content: "Portugal."})
	if err := src.InsertAttachment(ctx, Attachment{ID: "a1", MessageID: "m2", Type: "file", Name: "map.png", Content: "binary"}); err != nil {
		t.Fatalf("insert attachment: %v", err)
	}

	exportPath := filepath.Join(t.TempDir(), "travel.db")
	if err := src.ExportChat(ctx, "c1", exportPath); err != nil {
		t.Fatalf("export chat: %v", err)
	}

	ids, err := dst.ImportChats(ctx, exportPath)
	if err != nil {
		t.Fatalf("import chats: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected 1 imported chat, got %d", len(ids))
	}

	chat, err := dst.GetChat(ctx, ids[0])
	if err != nil {
		t.Fatalf("get imported chat: %v", err)
	}
	if chat.Name != "Travel plans" {
		t.Fatalf("imported name mismatch: %q", chat.Name)
	}

	messages, err := dst.ListMessages(ctx, ids[0], 0, 0)
	if err != nil {
		t.Fatalf("list imported messages: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 imported messages, got %d", len(messages))
	}
	if messages[1].Model != "llama3" || messages[1].Content != "Portugal." {
		t.Fatalf("imported message mismatch: %+v", messages[1])
	}

	atts, err := dst.ListAttachments(ctx, messages[1].ID)
	if err != nil {
		t.Fatalf("list imported attachments: %v", err)
	}
	if len(atts) != 1 || atts[0].Name != "map.png" {
		t.Fatalf("imported attachment mismatch: %+v", atts)
	}
}

func TestImportRenamesCollidingChat(t *testing.T) {
	ctx := context.Background()
	src := testStore(t)
	dst := testStore(t)

	mustUpsertChat(t, src, Chat{ID: "c1", Name: "Notes"})
	mustInsertMessage(t, src, Message{ID: "m1", ChatID: "c1", Role: RoleUser, DateTime: FormatTime(time.Now()), Content: "hello"})

	exportPath := filepath.Join(t.TempDir(), "notes.db")
	if err := src.ExportChat(ctx, "c1", exportPath); err != nil {
		t.Fatalf("export chat: %v", err)
	}

	mustUpsertChat(t, dst, Chat{ID: "other", Name: "Notes"})

	ids, err := dst.ImportChats(ctx, exportPath)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	chat, err := dst.GetChat(ctx, ids[0])
	if err != nil {
		t.Fatalf("get imported chat: %v", err)
	}
	if chat.Name != "Notes 2" {
		t.Fatalf("expected Notes 2, got %q", chat.Name)
	}
}

func TestImportRewritesCollidingIDs(t *testing.T) {
	ctx := context.Background()
	src := testStore(t)
	dst := testStore(t)

	mustUpsertChat(t, src, Chat{ID: "c1", Name: "Shared"})
	mustInsertMessage(t, src, Message{ID: "m1", ChatID: "c1", Role: RoleUser, DateTime: FormatTime(time.Now()), Content: "from export"})
	if err := src.InsertAttachment(ctx, Attachment{ID: "a1", MessageID: "m1", Type: "file", Name: "f", Content: "x"}); err != nil {
		t.Fatalf("insert attachment: %v", err)
	}

	exportPath := filepath.Join(t.TempDir(), "shared.db")
	if err := src.ExportChat(ctx, "c1", exportPath); err != nil {
		t.Fatalf("export: %v", err)
	}

	// The target already has rows under every exported ID.
	mustUpsertChat(t, dst, Chat{ID: "c1", Name: "Local"})
	mustInsertMessage(t, dst, Message{ID: "m1", ChatID: "c1", Role: RoleUser, DateTime: FormatTime(time.Now()), Content: "local"})
	if err := dst.InsertAttachment(ctx, Attachment{ID: "a1", MessageID: "m1", Type: "file", Name: "local", Content: "y"}); err != nil {
		t.Fatalf("insert local attachment: %v", err)
	}

	ids, err := dst.ImportChats(ctx, exportPath)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if ids[0] == "c1" {
		t.Fatalf("imported chat kept the colliding ID")
	}

	// Local rows untouched.
	local, err := dst.GetMessage(ctx, "m1")
	if err != nil {
		t.Fatalf("get local message: %v", err)
	}
	if local.Content != "local" || local.ChatID != "c1" {
		t.Fatalf("local message was modified: %+v", local)
	}

	// Imported rows re-linked under fresh IDs.
	imported, err := dst.ListMessages(ctx, ids[0], 0, 0)
	if err != nil {
		t.Fatalf("list imported messages: %v", err)
	}
	if len(imported) != 1 || imported[0].ID == "m1" || imported[0].Content != "from export" {
		t.Fatalf("imported message not rewritten: %+v", imported)
	}
	atts, err := dst.ListAttachments(ctx, imported[0].ID)
	if err != nil {
		t.Fatalf("list imported attachments: %v", err)
	}
	if len(atts) != 1 || atts[0].ID == "a1" {
		t.Fatalf("imported attachment not rewritten: %+v", atts)
	}
}

func TestExportMissingChat(t *testing.T) {
	s := testStore(t)
	err := s.ExportChat(context.Background(), "missing", filepath.Join(t.TempDir(), "out.db"))
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
