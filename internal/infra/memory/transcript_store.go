package memory

import (
	"context"
	"sync"

	"virtual-patient-service/internal/domain"
)

// TranscriptStore keeps in-progress encounter transcripts keyed by
// user and case.
type TranscriptStore struct {
	mu          sync.RWMutex
	transcripts map[string][]domain.ChatTurn
}

func NewTranscriptStore() *TranscriptStore {
	return &TranscriptStore{transcripts: make(map[string][]domain.ChatTurn)}
}

func (s *TranscriptStore) Append(_ context.Context, userID, caseID string, turns ...domain.ChatTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := transcriptKey(userID, caseID)
	s.transcripts[key] = append(s.transcripts[key], turns...)
	return nil
}

func (s *TranscriptStore) Get(_ context.Context, userID, caseID string) ([]domain.ChatTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.transcripts[transcriptKey(userID, caseID)]
	out := make([]domain.ChatTurn, len(stored))
	copy(out, stored)
	return out, nil
}

func (s *TranscriptStore) Clear(_ context.Context, userID, caseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.transcripts, transcriptKey(userID, caseID))
	return nil
}

func transcriptKey(userID, caseID string) string {
	return userID + ":" + caseID
}
