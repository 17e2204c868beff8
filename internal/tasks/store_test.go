package tasks

import (
	"context"
	"testing"
)

func TestMemoryStore_CreateGetUpdate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	rec := NewRecord("id-1", "user-1", "title", "desc", "low", StepNamesFor(TypeForecast))

	if err := store.Create(ctx, rec); err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}

	got, err := store.Get(ctx, "id-1")
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if got.ID != rec.ID {
		t.Fatalf("expected round-tripped record to match, got %+v", got)
	}

	got.Status = StatusRunning
	if err := store.Update(ctx, got); err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}

	updated, err := store.Get(ctx, "id-1")
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if updated.Status != StatusRunning {
		t.Fatalf("expected updated status to persist, got %s", updated.Status)
	}
}

func TestMemoryStore_GetMissingReturnsNotFound(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Get(context.Background(), "missing"); err == nil {
		t.Fatalf("expected an error for a missing id")
	}
}

func TestMemoryStore_UpdateMissingReturnsNotFound(t *testing.T) {
	store := NewMemoryStore()
	rec := NewRecord("ghost", "user-1", "t", "d", "low", nil)
	if err := store.Update(context.Background(), rec); err == nil {
		t.Fatalf("expected update of a never-created record to fail")
	}
}
