package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"alpaca/internal/storage"
)

func seededDB(t *testing.T) (string, *storage.Store) {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "live.db")
	store, err := storage.Open(ctx, path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.UpsertChat(ctx, storage.Chat{ID: "c1", Name: "Seed"}); err != nil {
		t.Fatalf("seed chat: %v", err)
	}
	if err := store.InsertMessage(ctx, storage.Message{
		ID: "m1", ChatID: "c1", Role: storage.RoleUser,
		DateTime: storage.FormatTime(time.Now()), Content: "hello",
	}); err != nil {
		t.Fatalf("seed message: %v", err)
	}
	return path, store
}

func TestCreateAndInfo(t *testing.T) {
	ctx := context.Background()
	dbPath, _ := seededDB(t)
	svc := New(dbPath)

	dest := filepath.Join(t.TempDir(), "backup.db")
	if err := svc.Create(ctx, dest); err != nil {
		t.Fatalf("create backup: %v", err)
	}

	info, err := svc.Info(ctx, dest)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.SizeBytes <= 0 {
		t.Fatalf("expected non-empty backup file")
	}
	if info.CreatedAt.IsZero() || time.Since(info.CreatedAt) > time.Minute {
		t.Fatalf("expected a recent creation time, got %v", info.CreatedAt)
	}

	counts := map[string]int{}
	for _, tbl := range info.Tables {
		counts[tbl.Name] = tbl.Rows
		if tbl.Name == "goose_db_version" {
			t.Fatalf("migration bookkeeping leaked into the backup")
		}
	}
	if counts["chat"] != 1 || counts["message"] != 1 {
		t.Fatalf("unexpected row counts: %+v", counts)
	}
}

func TestRestoreReplaceSnapshotsLiveDB(t *testing.T) {
	ctx := context.Background()
	dbPath, store := seededDB(t)
	svc := New(dbPath)

	dest := filepath.Join(t.TempDir(), "backup.db")
	if err := svc.Create(ctx, dest); err != nil {
		t.Fatalf("create backup: %v", err)
	}

	// Mutate the live DB after the backup, then close the handle before
	// the file swap.
	if err := store.UpsertChat(ctx, storage.Chat{ID: "c2", Name: "Post-backup"}); err != nil {
		t.Fatalf("mutate: %v", err)
	}
	store.Close()

	if err := svc.Restore(ctx, dest, ModeReplace); err != nil {
		t.Fatalf("restore: %v", err)
	}

	if _, err := os.Stat(dbPath + PreRestoreSuffix); err != nil {
		t.Fatalf("expected pre-restore snapshot: %v", err)
	}

	restored, err := storage.Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("reopen restored db: %v", err)
	}
	defer restored.Close()

	if _, err := restored.GetChat(ctx, "c1"); err != nil {
		t.Fatalf("backed-up chat missing after restore: %v", err)
	}
	if _, err := restored.GetChat(ctx, "c2"); err != storage.ErrNotFound {
		t.Fatalf("post-backup chat should be gone, got %v", err)
	}
}

func TestRestoreMergeKeepsLiveRows(t *testing.T) {
	ctx := context.Background()
	dbPath, store := seededDB(t)
	svc := New(dbPath)

	dest := filepath.Join(t.TempDir(), "backup.db")
	if err := svc.Create(ctx, dest); err != nil {
		t.Fatalf("create backup: %v", err)
	}

	// Rename the live chat; the backup still holds the old name. Merge
	// must keep the live version and add nothing for the same ID.
	if err := store.UpsertChat(ctx, storage.Chat{ID: "c1", Name: "Renamed"}); err != nil {
		t.Fatalf("rename: %v", err)
	}
	store.Close()

	if err := svc.Restore(ctx, dest, ModeMerge); err != nil {
		t.Fatalf("merge: %v", err)
	}

	merged, err := storage.Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("reopen merged db: %v", err)
	}
	defer merged.Close()

	chat, err := merged.GetChat(ctx, "c1")
	if err != nil {
		t.Fatalf("get chat: %v", err)
	}
	if chat.Name != "Renamed" {
		t.Fatalf("merge overwrote the live row: %q", chat.Name)
	}
}

func TestRestoreRejectsNonBackupFile(t *testing.T) {
	ctx := context.Background()
	dbPath, _ := seededDB(t)
	svc := New(dbPath)

	bogus := filepath.Join(t.TempDir(), "not-a-backup.db")
	if err := os.WriteFile(bogus, []byte("plain text"), 0o644); err != nil {
		t.Fatalf("write bogus file: %v", err)
	}
	if err := svc.Restore(ctx, bogus, ModeReplace); err == nil {
		t.Fatalf("expected validation error for non-backup file")
	}
}

func TestRestoreUnknownMode(t *testing.T) {
	ctx := context.Background()
	dbPath, _ := seededDB(t)
	svc := New(dbPath)

	dest := filepath.Join(t.TempDir(), "backup.db")
	if err := svc.Create(ctx, dest); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Restore(ctx, dest, Mode("sideways")); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
