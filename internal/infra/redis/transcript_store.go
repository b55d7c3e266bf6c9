package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"virtual-patient-service/internal/domain"
)

// TranscriptStore keeps the in-progress transcript as a Redis list of JSON
// turns: RPUSH transcript:{userID}:{caseID} {turn...}. Cleared on successful
// case completion; the TTL sweeps abandoned encounters.
type TranscriptStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewTranscriptStore(client *redis.Client, ttl time.Duration) *TranscriptStore {
	return &TranscriptStore{client: client, ttl: ttl}
}

func (s *TranscriptStore) Append(ctx context.Context, userID, caseID string, turns ...domain.ChatTurn) error {
	if len(turns) == 0 {
		return nil
	}
	key := s.key(userID, caseID)
	values := make([]interface{}, 0, len(turns))
	for _, t := range turns {
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("marshal turn: %w", err)
		}
		values = append(values, data)
	}

	pipe := s.client.Pipeline()
	pipe.RPush(ctx, key, values...)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *TranscriptStore) Get(ctx context.Context, userID, caseID string) ([]domain.ChatTurn, error) {
	raw, err := s.client.LRange(ctx, s.key(userID, caseID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	turns := make([]domain.ChatTurn, 0, len(raw))
	for _, item := range raw {
		var t domain.ChatTurn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			return nil, fmt.Errorf("unmarshal turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func (s *TranscriptStore) Clear(ctx context.Context, userID, caseID string) error {
	return s.client.Del(ctx, s.key(userID, caseID)).Err()
}

func (s *TranscriptStore) key(userID, caseID string) string {
	return "transcript:" + userID + ":" + caseID
}
