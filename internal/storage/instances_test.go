package storage

import (
	"context"
	"testing"
)

func TestUpsertInstanceOnlyUpdatesProperties(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.UpsertInstance(ctx, Instance{ID: "i1", Pinned: true, Type: "ollama", Properties: `{"url":"a"}`}); err != nil {
		t.Fatalf("insert instance: %v", err)
	}

	// A second upsert with different pinned/type only refreshes the
	// properties bag.
	if err := s.UpsertInstance(ctx, Instance{ID: "i1", Pinned: false, Type: "openai", Properties: `{"url":"b"}`}); err != nil {
		t.Fatalf("re-upsert instance: %v", err)
	}

	got, err := s.GetInstance(ctx, "i1")
	if err != nil {
		t.Fatalf("get instance: %v", err)
	}
	if got.Properties != `{"url":"b"}` {
		t.Fatalf("properties not updated: %q", got.Properties)
	}
	if !got.Pinned || got.Type != "ollama" {
		t.Fatalf("pinned/type should be immutable on conflict: %+v", got)
	}
}

func TestListInstancesPinnedFirst(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.UpsertInstance(ctx, Instance{ID: "a", Type: "ollama", Properties: "{}"}); err != nil {
		t.Fatalf("insert a: %v", err)
	}
	if err := s.UpsertInstance(ctx, Instance{ID: "z", Pinned: true, Type: "ollama", Properties: "{}"}); err != nil {
		t.Fatalf("insert z: %v", err)
	}

	instances, err := s.ListInstances(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(instances) != 2 || instances[0].ID != "z" {
		t.Fatalf("expected pinned instance first, got %+v", instances)
	}
}

func TestDeleteInstance(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.UpsertInstance(ctx, Instance{ID: "i1", Type: "ollama", Properties: "{}"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.DeleteInstance(ctx, "i1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetInstance(ctx, "i1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestModelPreferences(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	pic := "/path/to/pic.png"
	if err := s.UpsertModelPreferences(ctx, ModelPreferences{ID: "llama3", Picture: &pic}); err != nil {
		t.Fatalf("upsert prefs: %v", err)
	}

	got, err := s.GetModelPreferences(ctx, "llama3")
	if err != nil {
		t.Fatalf("get prefs: %v", err)
	}
	if got.Picture == nil || *got.Picture != pic || got.Voice != nil {
		t.Fatalf("unexpected prefs: %+v", got)
	}

	voice := "en-us"
	if err := s.UpsertModelPreferences(ctx, ModelPreferences{ID: "llama3", Voice: &voice}); err != nil {
		t.Fatalf("update prefs: %v", err)
	}
	got, err = s.GetModelPreferences(ctx, "llama3")
	if err != nil {
		t.Fatalf("re-get prefs: %v", err)
	}
	if got.Picture != nil || got.Voice == nil || *got.Voice != voice {
		t.Fatalf("expected full replacement, got %+v", got)
	}

	if _, err := s.GetModelPreferences(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteModelPreferences(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	pic := "/path/to/pic.png"
	if err := s.UpsertModelPreferences(ctx, ModelPreferences{ID: "llama3", Picture: &pic}); err != nil {
		t.Fatalf("upsert prefs: %v", err)
	}
	if err := s.DeleteModelPreferences(ctx, "llama3"); err != nil {
		t.Fatalf("delete prefs: %v", err)
	}
	if _, err := s.GetModelPreferences(ctx, "llama3"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestOnlineModelList(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.SetOnlineModelList(ctx, "openrouter", `["a","b"]`); err != nil {
		t.Fatalf("set list: %v", err)
	}
	if err := s.SetOnlineModelList(ctx, "openrouter", `["a","b","c"]`); err != nil {
		t.Fatalf("replace list: %v", err)
	}

	got, err := s.GetOnlineModelList(ctx, "openrouter")
	if err != nil {
		t.Fatalf("get list: %v", err)
	}
	if got != `["a","b","c"]` {
		t.Fatalf("expected latest snapshot, got %q", got)
	}

	if _, err := s.GetOnlineModelList(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAppendOnlineModel(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	// Appending to an absent key creates the list.
	if err := s.AppendOnlineModel(ctx, "openrouter", "a"); err != nil {
		t.Fatalf("append to absent list: %v", err)
	}
	if err := s.AppendOnlineModel(ctx, "openrouter", "b"); err != nil {
		t.Fatalf("append: %v", err)
	}
	// Duplicate appends do not grow the list.
	if err := s.AppendOnlineModel(ctx, "openrouter", "a"); err != nil {
		t.Fatalf("re-append: %v", err)
	}

	got, err := s.GetOnlineModelList(ctx, "openrouter")
	if err != nil {
		t.Fatalf("get list: %v", err)
	}
	if got != `["a","b"]` {
		t.Fatalf("unexpected list: %q", got)
	}
}

func TestRemoveOnlineModel(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.SetOnlineModelList(ctx, "openrouter", `["a","b","c"]`); err != nil {
		t.Fatalf("set list: %v", err)
	}
	if err := s.RemoveOnlineModel(ctx, "openrouter", "b"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	got, err := s.GetOnlineModelList(ctx, "openrouter")
	if err != nil {
		t.Fatalf("get list: %v", err)
	}
	if got != `["a","c"]` {
		t.Fatalf("unexpected list: %q", got)
	}

	if err := s.RemoveOnlineModel(ctx, "openrouter", "ghost"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for missing model, got %v", err)
	}
	if err := s.RemoveOnlineModel(ctx, "missing", "a"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for missing key, got %v", err)
	}
}
