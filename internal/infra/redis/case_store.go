package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"virtual-patient-service/internal/domain"
)

// CaseStore caches generated case documents as JSON: SET case:{caseID}.
// TTL gets up to 10% jitter so a burst of generated cases does not expire
// in one step.
type CaseStore struct {
	client *redis.Client
	ttl    time.Duration
	rnd    *rand.Rand
}

func NewCaseStore(client *redis.Client, ttl time.Duration) *CaseStore {
	return &CaseStore{
		client: client,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *CaseStore) Put(ctx context.Context, c domain.CaseDocument) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal case: %w", err)
	}
	return s.client.Set(ctx, s.key(c.ID), data, s.ttlWithJitter()).Err()
}

func (s *CaseStore) Get(ctx context.Context, caseID string) (domain.CaseDocument, error) {
	raw, err := s.client.Get(ctx, s.key(caseID)).Bytes()
	if err == redis.Nil {
		return domain.CaseDocument{}, domain.ErrCaseNotFound
	}
	if err != nil {
		return domain.CaseDocument{}, err
	}
	var doc domain.CaseDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.CaseDocument{}, fmt.Errorf("unmarshal case: %w", err)
	}
	return doc, nil
}

func (s *CaseStore) key(caseID string) string {
	return "case:" + caseID
}

func (s *CaseStore) ttlWithJitter() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	jitterMax := int64(s.ttl) / 10
	return s.ttl + time.Duration(s.rnd.Int63n(jitterMax+1))
}
