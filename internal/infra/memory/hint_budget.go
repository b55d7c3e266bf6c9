package memory

import (
	"context"
	"sync"
	"time"

	"virtual-patient-service/internal/domain"
)

// HintBudget tracks the per-day hint quota. Any access on a date different
// from the stored one resets the count to the full quota first.
type HintBudget struct {
	maxPerDay int

	mu      sync.Mutex
	budgets map[string]dayBudget
}

type dayBudget struct {
	day       string
	remaining int
}

func NewHintBudget(maxPerDay int) *HintBudget {
	return &HintBudget{maxPerDay: maxPerDay, budgets: make(map[string]dayBudget)}
}

func (b *HintBudget) Remaining(_ context.Context, userID string, day time.Time) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentLocked(userID, day).remaining, nil
}

func (b *HintBudget) ConsumeOne(_ context.Context, userID string, day time.Time) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	current := b.currentLocked(userID, day)
	if current.remaining <= 0 {
		return 0, domain.ErrBudgetExhausted
	}
	current.remaining--
	b.budgets[userID] = current
	return current.remaining, nil
}

// currentLocked applies the day-rollover policy before returning the budget.
func (b *HintBudget) currentLocked(userID string, day time.Time) dayBudget {
	key := day.Format("2006-01-02")
	current, ok := b.budgets[userID]
	if !ok || current.day != key {
		current = dayBudget{day: key, remaining: b.maxPerDay}
		b.budgets[userID] = current
	}
	return current
}
