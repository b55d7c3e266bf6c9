package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"virtual-patient-service/internal/domain"
)

func TestCaseStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewCaseStore(time.Minute)

	doc := domain.CaseDocument{ID: "c1", Title: "Chest pain"}
	if err := store.Put(ctx, doc); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := store.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Chest pain" {
		t.Fatalf("title = %q", got.Title)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, domain.ErrCaseNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCaseStoreExpires(t *testing.T) {
	ctx := context.Background()
	store := NewCaseStore(time.Minute)
	base := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	store.clock = func() time.Time { return base }

	_ = store.Put(ctx, domain.CaseDocument{ID: "c1"})

	store.clock = func() time.Time { return base.Add(2 * time.Minute) }
	if _, err := store.Get(ctx, "c1"); !errors.Is(err, domain.ErrCaseNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestTranscriptStoreAppendAndClear(t *testing.T) {
	ctx := context.Background()
	store := NewTranscriptStore()

	turn := domain.ChatTurn{Role: domain.RoleStudent, Content: "hello"}
	if err := store.Append(ctx, "u1", "c1", turn); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = store.Append(ctx, "u1", "c1", domain.ChatTurn{Role: domain.RolePatient, Content: "hi"})

	turns, err := store.Get(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(turns) != 2 || turns[0].Content != "hello" {
		t.Fatalf("turns = %+v", turns)
	}

	if err := store.Clear(ctx, "u1", "c1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	turns, _ = store.Get(ctx, "u1", "c1")
	if len(turns) != 0 {
		t.Fatalf("expected cleared transcript, got %d turns", len(turns))
	}
}
