package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustUpsertChat(t *testing.T, s *Store, c Chat) {
	t.Helper()
	if err := s.UpsertChat(context.Background(), c); err != nil {
		t.Fatalf("upsert chat: %v", err)
	}
}

func mustInsertMessage(t *testing.T, s *Store, m Message) {
	t.Helper()
	if err := s.InsertMessage(context.Background(), m); err != nil {
		t.Fatalf("insert message: %v", err)
	}
}

func TestUpsertAndGetChat(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	chat := Chat{ID: "c1", Name: "First"}
	mustUpsertChat(t, s, chat)

	got, err := s.GetChat(ctx, "c1")
	if err != nil {
		t.Fatalf("get chat: %v", err)
	}
	if got.Name != "First" || got.Folder != nil || got.IsTemplate {
		t.Fatalf("unexpected chat: %+v", got)
	}

	chat.Name = "Renamed"
	mustUpsertChat(t, s, chat)
	got, err = s.GetChat(ctx, "c1")
	if err != nil {
		t.Fatalf("get renamed chat: %v", err)
	}
	if got.Name != "Renamed" {
		t.Fatalf("expected rename to stick, got %q", got.Name)
	}
}

func TestGetChatNotFound(t *testing.T) {
	s := testStore(t)
	if _, err := s.GetChat(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListChatsByFolderOrdering(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	mustUpsertChat(t, s, Chat{ID: "old", Name: "Old"})
	mustUpsertChat(t, s, Chat{ID: "new", Name: "New"})
	mustUpsertChat(t, s, Chat{ID: "empty", Name: "Empty"})

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mustInsertMessage(t, s, Message{ID: "m1", ChatID: "old", Role: RoleUser, DateTime: FormatTime(base), Content: "hi"})
	mustInsertMessage(t, s, Message{ID: "m2", ChatID: "new", Role: RoleUser, DateTime: FormatTime(base.Add(time.Hour)), Content: "hello"})

	chats, err := s.ListChatsByFolder(ctx, nil)
	if err != nil {
		t.Fatalf("list chats: %v", err)
	}
	if len(chats) != 3 {
		t.Fatalf("expected 3 chats, got %d", len(chats))
	}
	if chats[0].ID != "new" || chats[1].ID != "old" {
		t.Fatalf("expected most recent first, got %s then %s", chats[0].ID, chats[1].ID)
	}
	if chats[0].LastMessageAt == nil || *chats[0].LastMessageAt != FormatTime(base.Add(time.Hour)) {
		t.Fatalf("unexpected last message time: %v", chats[0].LastMessageAt)
	}
}

func TestListChatsFolderScoping(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.UpsertFolder(ctx, ChatFolder{ID: "f1", Name: "Work"}); err != nil {
		t.Fatalf("upsert folder: %v", err)
	}
	folder := "f1"
	mustUpsertChat(t, s, Chat{ID: "in-folder", Name: "A", Folder: &folder})
	mustUpsertChat(t, s, Chat{ID: "root", Name: "B"})

	rootChats, err := s.ListChatsByFolder(ctx, nil)
	if err != nil {
		t.Fatalf("list root: %v", err)
	}
	if len(rootChats) != 1 || rootChats[0].ID != "root" {
		t.Fatalf("expected only root chat, got %+v", rootChats)
	}

	folderChats, err := s.ListChatsByFolder(ctx, &folder)
	if err != nil {
		t.Fatalf("list folder: %v", err)
	}
	if len(folderChats) != 1 || folderChats[0].ID != "in-folder" {
		t.Fatalf("expected only folder chat, got %+v", folderChats)
	}
}

func TestDeleteChatCascades(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	mustUpsertChat(t, s, Chat{ID: "c1", Name: "Doomed"})
	mustInsertMessage(t, s, Message{ID: "m1", ChatID: "c1", Role: RoleUser, DateTime: FormatTime(time.Now()), Content: "bye"})
	if err := s.InsertAttachment(ctx, Attachment{ID: "a1", MessageID: "m1", Type: "file", Name: "notes.txt", Content: "x"}); err != nil {
		t.Fatalf("insert attachment: %v", err)
	}

	if err := s.DeleteChat(ctx, "c1"); err != nil {
		t.Fatalf("delete chat: %v", err)
	}

	if _, err := s.GetChat(ctx, "c1"); err != ErrNotFound {
		t.Fatalf("chat should be gone, got %v", err)
	}
	if _, err := s.GetMessage(ctx, "m1"); err != ErrNotFound {
		t.Fatalf("message should be gone, got %v", err)
	}
	atts, err := s.ListAttachments(ctx, "m1")
	if err != nil {
		t.Fatalf("list attachments: %v", err)
	}
	if len(atts) != 0 {
		t.Fatalf("attachments should be gone, got %d", len(atts))
	}
}

func TestDuplicateChatFreshIDs(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	mustUpsertChat(t, s, Chat{ID: "src", Name: "Source"})
	mustInsertMessage(t, s, Message{ID: "m1", ChatID: "src", Role: RoleUser, DateTime: FormatTime(time.Now()), Content: "original"})
	if err := s.InsertAttachment(ctx, Attachment{ID: "a1", MessageID: "m1", Type: "file", Name: "f", Content: "c"}); err != nil {
		t.Fatalf("insert attachment: %v", err)
	}

	dup := Chat{ID: NewID(), Name: "Source 2"}
	if err := s.DuplicateChat(ctx, "src", dup); err != nil {
		t.Fatalf("duplicate chat: %v", err)
	}

	messages, err := s.ListMessages(ctx, dup.ID, 0, 0)
	if err != nil {
		t.Fatalf("list duplicated messages: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected 1 duplicated message, got %d", len(messages))
	}
	if messages[0].ID == "m1" {
		t.Fatalf("duplicated message kept the source ID")
	}
	if messages[0].Content != "original" {
		t.Fatalf("duplicated content mismatch: %q", messages[0].Content)
	}

	atts, err := s.ListAttachments(ctx, messages[0].ID)
	if err != nil {
		t.Fatalf("list duplicated attachments: %v", err)
	}
	if len(atts) != 1 || atts[0].ID == "a1" {
		t.Fatalf("expected 1 fresh attachment, got %+v", atts)
	}

	// Source untouched.
	srcMessages, err := s.ListMessages(ctx, "src", 0, 0)
	if err != nil {
		t.Fatalf("list source messages: %v", err)
	}
	if len(srcMessages) != 1 || srcMessages[0].ID != "m1" {
		t.Fatalf("source chat was modified: %+v", srcMessages)
	}
}

func TestNumberedName(t *testing.T) {
	existing := []string{"Chat", "Chat 2"}
	if got := NumberedName("Fresh", existing); got != "Fresh" {
		t.Fatalf("non-colliding name changed: %q", got)
	}
	if got := NumberedName("Chat", existing); got != "Chat 3" {
		t.Fatalf("expected Chat 3, got %q", got)
	}
	if got := NumberedName("Chat", []string{"Chat"}); got != "Chat 2" {
		t.Fatalf("first collision should yield Chat 2, got %q", got)
	}
	if got := NumberedName("export.db", []string{"export.db"}); got != "export 2.db" {
		t.Fatalf("expected export 2.db, got %q", got)
	}
}

func TestFactoryReset(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	mustUpsertChat(t, s, Chat{ID: "c1", Name: "Chat"})
	mustInsertMessage(t, s, Message{ID: "m1", ChatID: "c1", Role: RoleUser, DateTime: FormatTime(time.Now()), Content: "x"})
	if err := s.UpsertFolder(ctx, ChatFolder{ID: "f1", Name: "Folder"}); err != nil {
		t.Fatalf("upsert folder: %v", err)
	}
	// Instances survive a factory reset.
	if err := s.UpsertInstance(ctx, Instance{ID: "i1", Type: "ollama", Properties: "{}"}); err != nil {
		t.Fatalf("upsert instance: %v", err)
	}

	if err := s.FactoryReset(ctx); err != nil {
		t.Fatalf("factory reset: %v", err)
	}

	chats, err := s.ListChatsByFolder(ctx, nil)
	if err != nil {
		t.Fatalf("list chats: %v", err)
	}
	if len(chats) != 0 {
		t.Fatalf("chats survived reset: %+v", chats)
	}
	folders, err := s.ListFolders(ctx, nil)
	if err != nil {
		t.Fatalf("list folders: %v", err)
	}
	if len(folders) != 0 {
		t.Fatalf("folders survived reset: %+v", folders)
	}
	instances, err := s.ListInstances(ctx)
	if err != nil {
		t.Fatalf("list instances: %v", err)
	}
	if len(instances) != 1 {
		t.Fatalf("expected instance to survive reset, got %d", len(instances))
	}
}
