package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"virtual-patient-service/internal/domain"
	"virtual-patient-service/internal/infra/memory"
	"virtual-patient-service/internal/logger"
)

// countingBoard wraps a LeaderboardStore and counts backend reads.
type countingBoard struct {
	LeaderboardStore
	topCalls int
}

func (b *countingBoard) Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	b.topCalls++
	return b.LeaderboardStore.Top(ctx, limit)
}

func TestTopServesSnapshotWithinTTL(t *testing.T) {
	ctx := context.Background()
	backend := &countingBoard{LeaderboardStore: memory.NewLeaderboard()}
	if err := backend.Upsert(ctx, domain.LeaderboardEntry{UserID: "u1", DisplayName: "Dana", AverageScore: 8.2, Completed: 5}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	svc := NewBoardService(logger.NewNop(), backend, memory.NewStreakStore(), memory.NewNotificationStore(), memory.NewProfileStore(), time.Minute)
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		entries, err := svc.Top(ctx, 10)
		if err != nil || len(entries) != 1 {
			t.Fatalf("top: %+v err=%v", entries, err)
		}
	}
	if backend.topCalls != 1 {
		t.Fatalf("backend reads = %d, want 1 (snapshot within TTL)", backend.topCalls)
	}

	now = now.Add(2 * time.Minute)
	if _, err := svc.Top(ctx, 10); err != nil {
		t.Fatalf("top after expiry: %v", err)
	}
	if backend.topCalls != 2 {
		t.Fatalf("backend reads = %d, want 2 (expired snapshot refreshed)", backend.topCalls)
	}
}

func TestTopDefaultsLimit(t *testing.T) {
	ctx := context.Background()
	board := memory.NewLeaderboard()
	svc := NewBoardService(logger.NewNop(), board, memory.NewStreakStore(), memory.NewNotificationStore(), memory.NewProfileStore(), 0)

	entries, err := svc.Top(ctx, -1)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestStreakZeroValuedForNewUser(t *testing.T) {
	svc := NewBoardService(logger.NewNop(), memory.NewLeaderboard(), memory.NewStreakStore(), memory.NewNotificationStore(), memory.NewProfileStore(), 0)

	st, err := svc.Streak(context.Background(), "fresh")
	if err != nil {
		t.Fatalf("streak: %v", err)
	}
	if st.UserID != "fresh" || st.CurrentStreak != 0 || st.MaxStreak != 0 {
		t.Fatalf("streak = %+v", st)
	}
}

func TestMarkReadFlow(t *testing.T) {
	ctx := context.Background()
	inbox := memory.NewNotificationStore()
	svc := NewBoardService(logger.NewNop(), memory.NewLeaderboard(), memory.NewStreakStore(), inbox, memory.NewProfileStore(), 0)

	for _, id := range []string{"n1", "n2"} {
		if err := inbox.Append(ctx, domain.Notification{ID: id, UserID: "u1", Type: "case_completed"}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	if err := svc.MarkRead(ctx, "u1", "n1"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	list, err := svc.Notifications(ctx, "u1")
	if err != nil || len(list) != 2 {
		t.Fatalf("list = %+v err=%v", list, err)
	}
	readCount := 0
	for _, n := range list {
		if n.Read {
			readCount++
		}
	}
	if readCount != 1 {
		t.Fatalf("read count = %d, want 1", readCount)
	}

	if err := svc.MarkAllRead(ctx, "u1"); err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	list, _ = svc.Notifications(ctx, "u1")
	for _, n := range list {
		if !n.Read {
			t.Fatalf("notification %s still unread", n.ID)
		}
	}
}

func TestProfileNotFound(t *testing.T) {
	svc := NewBoardService(logger.NewNop(), memory.NewLeaderboard(), memory.NewStreakStore(), memory.NewNotificationStore(), memory.NewProfileStore(), 0)
	if _, err := svc.Profile(context.Background(), "nobody"); !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatalf("expected profile not found, got %v", err)
	}
}
