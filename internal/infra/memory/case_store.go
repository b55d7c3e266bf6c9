// Package memory provides in-process implementations of the app ports,
// used when no Redis/Postgres is configured and throughout the tests.
package memory

import (
	"context"
	"sync"
	"time"

	"virtual-patient-service/internal/domain"
)

// CaseStore keeps generated cases with a TTL so abandoned encounters age out.
type CaseStore struct {
	ttl   time.Duration
	clock func() time.Time

	mu    sync.RWMutex
	cases map[string]cachedCase
}

type cachedCase struct {
	doc       domain.CaseDocument
	expiresAt time.Time
}

func NewCaseStore(ttl time.Duration) *CaseStore {
	return &CaseStore{
		ttl:   ttl,
		clock: time.Now,
		cases: make(map[string]cachedCase),
	}
}

func (s *CaseStore) Put(_ context.Context, c domain.CaseDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := cachedCase{doc: c}
	if s.ttl > 0 {
		entry.expiresAt = s.clock().Add(s.ttl)
	}
	s.cases[c.ID] = entry
	return nil
}

func (s *CaseStore) Get(_ context.Context, caseID string) (domain.CaseDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.cases[caseID]
	if !ok {
		return domain.CaseDocument{}, domain.ErrCaseNotFound
	}
	if !entry.expiresAt.IsZero() && !entry.expiresAt.After(s.clock()) {
		return domain.CaseDocument{}, domain.ErrCaseNotFound
	}
	return entry.doc, nil
}
