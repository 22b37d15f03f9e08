package storage

import (
	"context"
	"testing"
	"time"
)

func TestFolderHierarchy(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.UpsertFolder(ctx, ChatFolder{ID: "root1", Name: "Work"}); err != nil {
		t.Fatalf("upsert root: %v", err)
	}
	parent := "root1"
	if err := s.UpsertFolder(ctx, ChatFolder{ID: "sub1", Name: "Projects", Parent: &parent}); err != nil {
		t.Fatalf("upsert sub: %v", err)
	}

	top, err := s.ListFolders(ctx, nil)
	if err != nil {
		t.Fatalf("list top: %v", err)
	}
	if len(top) != 1 || top[0].ID != "root1" {
		t.Fatalf("expected only root folder at top, got %+v", top)
	}

	subs, err := s.ListFolders(ctx, &parent)
	if err != nil {
		t.Fatalf("list subs: %v", err)
	}
	if len(subs) != 1 || subs[0].ID != "sub1" {
		t.Fatalf("expected one subfolder, got %+v", subs)
	}
}

func TestMoveFolder(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.UpsertFolder(ctx, ChatFolder{ID: "a", Name: "A"}); err != nil {
		t.Fatalf("upsert a: %v", err)
	}
	if err := s.UpsertFolder(ctx, ChatFolder{ID: "b", Name: "B"}); err != nil {
		t.Fatalf("upsert b: %v", err)
	}

	target := "a"
	if err := s.MoveFolder(ctx, "b", &target); err != nil {
		t.Fatalf("move: %v", err)
	}
	subs, err := s.ListFolders(ctx, &target)
	if err != nil {
		t.Fatalf("list subs: %v", err)
	}
	if len(subs) != 1 || subs[0].ID != "b" {
		t.Fatalf("expected b under a, got %+v", subs)
	}

	if err := s.MoveFolder(ctx, "ghost", nil); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteFolderRecursive(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.UpsertFolder(ctx, ChatFolder{ID: "top", Name: "Top"}); err != nil {
		t.Fatalf("upsert top: %v", err)
	}
	top := "top"
	if err := s.UpsertFolder(ctx, ChatFolder{ID: "nested", Name: "Nested", Parent: &top}); err != nil {
		t.Fatalf("upsert nested: %v", err)
	}
	nested := "nested"

	mustUpsertChat(t, s, Chat{ID: "c-top", Name: "In top", Folder: &top})
	mustUpsertChat(t, s, Chat{ID: "c-nested", Name: "In nested", Folder: &nested})
	mustUpsertChat(t, s, Chat{ID: "c-root", Name: "At root"})
	mustInsertMessage(t, s, Message{ID: "m1", ChatID: "c-nested", Role: RoleUser, DateTime: FormatTime(time.Now()), Content: "deep"})

	if err := s.DeleteFolder(ctx, "top"); err != nil {
		t.Fatalf("delete folder: %v", err)
	}

	for _, chatID := range []string{"c-top", "c-nested"} {
		if _, err := s.GetChat(ctx, chatID); err != ErrNotFound {
			t.Fatalf("chat %s should be gone, got %v", chatID, err)
		}
	}
	if _, err := s.GetMessage(ctx, "m1"); err != ErrNotFound {
		t.Fatalf("nested message should be gone, got %v", err)
	}
	if _, err := s.GetChat(ctx, "c-root"); err != nil {
		t.Fatalf("root chat should survive: %v", err)
	}

	folders, err := s.ListFolders(ctx, nil)
	if err != nil {
		t.Fatalf("list folders: %v", err)
	}
	if len(folders) != 0 {
		t.Fatalf("folders should be gone, got %+v", folders)
	}
}
