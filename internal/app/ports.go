package app

import (
	"context"
	"time"

	"virtual-patient-service/internal/domain"
)

// Simulator is the generative capability behind the encounter. The concrete
// implementation lives in internal/llm.
type Simulator interface {
	GenerateCase(ctx context.Context, filters domain.CaseFilters) (domain.CaseDocument, error)
	RoleplayTurn(ctx context.Context, c domain.CaseDocument, history []domain.ChatTurn, userMessage string) (string, error)
	GenerateHint(ctx context.Context, c domain.CaseDocument, history []domain.ChatTurn) (string, error)
	// EvaluateEPAs fails soft by contract: it always returns a usable
	// evaluation, degrading to zero scores on malformed output.
	EvaluateEPAs(ctx context.Context, c domain.CaseDocument, transcript []domain.ChatTurn) domain.EPAEvaluation
	GenerateSOAPNote(ctx context.Context, c domain.CaseDocument) (string, error)
}

// CaseStore caches generated case documents for the lifetime of an encounter
// (in-memory or Redis).
type CaseStore interface {
	Put(ctx context.Context, c domain.CaseDocument) error
	Get(ctx context.Context, caseID string) (domain.CaseDocument, error)
}

// TranscriptStore holds the in-progress encounter transcript, cleared on
// successful completion.
type TranscriptStore interface {
	Append(ctx context.Context, userID, caseID string, turns ...domain.ChatTurn) error
	Get(ctx context.Context, userID, caseID string) ([]domain.ChatTurn, error)
	Clear(ctx context.Context, userID, caseID string) error
}

// HintBudget tracks the per-day hint quota. Day rollover is handled by the
// implementation: a read on a new day starts from the full quota.
type HintBudget interface {
	Remaining(ctx context.Context, userID string, day time.Time) (int, error)
	// ConsumeOne decrements and returns the new remaining count, or
	// domain.ErrBudgetExhausted when nothing remains. Never goes below 0.
	ConsumeOne(ctx context.Context, userID string, day time.Time) (int, error)
}

// ResultStore is the append-only case-completion log.
type ResultStore interface {
	Append(ctx context.Context, r domain.CaseResult) error
}

// StreakStore holds one streak record per user.
type StreakStore interface {
	// Get returns nil (no error) when the user has no record yet.
	Get(ctx context.Context, userID string) (*domain.StreakState, error)
	Put(ctx context.Context, s domain.StreakState) error
}

// ProgressStore holds lifetime completion counters per user.
type ProgressStore interface {
	// Get returns a zero-value Progress when the user has no record yet.
	Get(ctx context.Context, userID string) (domain.Progress, error)
	Put(ctx context.Context, p domain.Progress) error
}

// LeaderboardStore holds one row per user with the running average score.
type LeaderboardStore interface {
	Upsert(ctx context.Context, e domain.LeaderboardEntry) error
	Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

// NotificationStore is the append-only notification inbox.
type NotificationStore interface {
	Append(ctx context.Context, n domain.Notification) error
	ListForUser(ctx context.Context, userID string) ([]domain.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID string) error
	MarkAllRead(ctx context.Context, userID string) error
}

// ProfileStore holds user records, including the training-phase metadata.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (domain.Profile, error)
	Put(ctx context.Context, p domain.Profile) error
}
