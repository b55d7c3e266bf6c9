// Package redis implements the app ports against Redis, mirroring the
// in-memory implementations for deployments that need the state to survive
// restarts.
package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"virtual-patient-service/internal/domain"
)

// HintBudget stores the remaining daily quota as one key per user and day:
// SET hints:{userID}:{YYYY-MM-DD} {remaining}. Day rollover falls out of the
// key construction; stale keys expire on their own. One UI actor drives the
// budget, so plain read-modify-write is sufficient.
type HintBudget struct {
	client    *redis.Client
	maxPerDay int
	ttl       time.Duration
}

func NewHintBudget(client *redis.Client, maxPerDay int) *HintBudget {
	return &HintBudget{client: client, maxPerDay: maxPerDay, ttl: 48 * time.Hour}
}

func (b *HintBudget) Remaining(ctx context.Context, userID string, day time.Time) (int, error) {
	remaining, _, err := b.current(ctx, userID, day)
	return remaining, err
}

func (b *HintBudget) ConsumeOne(ctx context.Context, userID string, day time.Time) (int, error) {
	remaining, key, err := b.current(ctx, userID, day)
	if err != nil {
		return 0, err
	}
	if remaining <= 0 {
		return 0, domain.ErrBudgetExhausted
	}
	remaining--
	if err := b.client.Set(ctx, key, remaining, b.ttl).Err(); err != nil {
		return 0, err
	}
	return remaining, nil
}

func (b *HintBudget) current(ctx context.Context, userID string, day time.Time) (int, string, error) {
	key := "hints:" + userID + ":" + day.Format("2006-01-02")
	raw, err := b.client.Get(ctx, key).Result()
	if err == redis.Nil {
		if err := b.client.Set(ctx, key, b.maxPerDay, b.ttl).Err(); err != nil {
			return 0, key, err
		}
		return b.maxPerDay, key, nil
	}
	if err != nil {
		return 0, key, err
	}
	remaining, err := strconv.Atoi(raw)
	if err != nil || remaining < 0 {
		remaining = 0
	}
	return remaining, key, nil
}
