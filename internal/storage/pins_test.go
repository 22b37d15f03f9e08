package storage

import (
	"context"
	"testing"
)

func pinOrder(t *testing.T, s *Store, instanceID string) []string {
	t.Helper()
	pins, err := s.PinnedModels(context.Background(), instanceID)
	if err != nil {
		t.Fatalf("pinned models: %v", err)
	}
	names := make([]string, 0, len(pins))
	for i, p := range pins {
		if p.PinOrder != i+1 {
			t.Fatalf("pin orders not dense from 1: %+v", pins)
		}
		names = append(names, p.ModelName)
	}
	return names
}

func TestPinModelAssignsSequentialOrder(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, model := range []string{"llama3", "mistral", "gemma"} {
		if _, err := s.PinModel(ctx, model, "i1"); err != nil {
			t.Fatalf("pin %s: %v", model, err)
		}
	}

	got := pinOrder(t, s, "i1")
	want := []string{"llama3", "mistral", "gemma"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestPinModelIdempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	first, err := s.PinModel(ctx, "llama3", "i1")
	if err != nil {
		t.Fatalf("pin: %v", err)
	}
	second, err := s.PinModel(ctx, "llama3", "i1")
	if err != nil {
		t.Fatalf("re-pin: %v", err)
	}
	if first != second {
		t.Fatalf("re-pin returned a different ID: %s vs %s", first, second)
	}
	if names := pinOrder(t, s, "i1"); len(names) != 1 {
		t.Fatalf("expected a single pin, got %v", names)
	}
}

func TestUnpinClosesGap(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, model := range []string{"a", "b", "c"} {
		if _, err := s.PinModel(ctx, model, "i1"); err != nil {
			t.Fatalf("pin %s: %v", model, err)
		}
	}
	if err := s.UnpinModel(ctx, "b", "i1"); err != nil {
		t.Fatalf("unpin: %v", err)
	}

	got := pinOrder(t, s, "i1")
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("expected [a c] contiguous, got %v", got)
	}

	pinned, err := s.IsModelPinned(ctx, "b", "i1")
	if err != nil {
		t.Fatalf("is pinned: %v", err)
	}
	if pinned {
		t.Fatalf("b should not be pinned")
	}
}

func TestUnpinMissingModel(t *testing.T) {
	s := testStore(t)
	if err := s.UnpinModel(context.Background(), "ghost", "i1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetPinOrderMovesBothDirections(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, model := range []string{"a", "b", "c", "d"} {
		if _, err := s.PinModel(ctx, model, "i1"); err != nil {
			t.Fatalf("pin %s: %v", model, err)
		}
	}

	// Move d to the front.
	if err := s.SetPinOrder(ctx, "d", "i1", 1); err != nil {
		t.Fatalf("move up: %v", err)
	}
	got := pinOrder(t, s, "i1")
	want := []string{"d", "a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("after move up expected %v, got %v", want, got)
		}
	}

	// Move d to the back again.
	if err := s.SetPinOrder(ctx, "d", "i1", 4); err != nil {
		t.Fatalf("move down: %v", err)
	}
	got = pinOrder(t, s, "i1")
	want = []string{"a", "b", "c", "d"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("after move down expected %v, got %v", want, got)
		}
	}
}

func TestPinsScopedPerInstance(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if _, err := s.PinModel(ctx, "llama3", "i1"); err != nil {
		t.Fatalf("pin i1: %v", err)
	}
	if _, err := s.PinModel(ctx, "llama3", "i2"); err != nil {
		t.Fatalf("pin i2: %v", err)
	}
	if err := s.UnpinModel(ctx, "llama3", "i1"); err != nil {
		t.Fatalf("unpin i1: %v", err)
	}

	pinned, err := s.IsModelPinned(ctx, "llama3", "i2")
	if err != nil {
		t.Fatalf("is pinned: %v", err)
	}
	if !pinned {
		t.Fatalf("unpinning on i1 removed the i2 pin")
	}
}
