package app

import (
	"context"
	"fmt"
	"time"

	"virtual-patient-service/internal/domain"
	"virtual-patient-service/internal/logger"
)

// EncounterService drives a live patient encounter: starting cases, roleplay
// turns, hint budgeting, and SOAP notes. One user drives one case at a time,
// so operations here are not reentrant-safe across simultaneous cases.
type EncounterService struct {
	log         *logger.Logger
	sim         Simulator
	cases       CaseStore
	transcripts TranscriptStore
	budget      HintBudget
	maxHints    int
	now         func() time.Time
}

func NewEncounterService(log *logger.Logger, sim Simulator, cases CaseStore, transcripts TranscriptStore, budget HintBudget, maxHints int) *EncounterService {
	return &EncounterService{
		log:         log,
		sim:         sim,
		cases:       cases,
		transcripts: transcripts,
		budget:      budget,
		maxHints:    maxHints,
		now:         time.Now,
	}
}

// WithClock is test-only for deterministic timestamps.
func (s *EncounterService) WithClock(now func() time.Time) *EncounterService {
	s.now = now
	return s
}

// StartCase generates and caches a fresh case for the given filters.
// Generation failures are retryable; nothing partial is committed.
func (s *EncounterService) StartCase(ctx context.Context, filters domain.CaseFilters) (domain.CaseDocument, error) {
	doc, err := s.sim.GenerateCase(ctx, filters)
	if err != nil {
		return domain.CaseDocument{}, err
	}
	if err := s.cases.Put(ctx, doc); err != nil {
		return domain.CaseDocument{}, fmt.Errorf("cache case: %w", err)
	}
	s.log.Info("case started", "case_id", doc.ID, "specialty", doc.Specialty)
	return doc, nil
}

// GetCase returns a previously started case.
func (s *EncounterService) GetCase(ctx context.Context, caseID string) (domain.CaseDocument, error) {
	return s.cases.Get(ctx, caseID)
}

// PatientReply records the student's message, asks the simulator for the
// patient's response, and persists both turns of the transcript.
func (s *EncounterService) PatientReply(ctx context.Context, userID, caseID, message string) (string, error) {
	doc, err := s.cases.Get(ctx, caseID)
	if err != nil {
		return "", err
	}
	history, err := s.transcripts.Get(ctx, userID, caseID)
	if err != nil {
		return "", fmt.Errorf("load transcript: %w", err)
	}

	reply, err := s.sim.RoleplayTurn(ctx, doc, history, message)
	if err != nil {
		return "", err
	}

	now := s.now()
	err = s.transcripts.Append(ctx, userID, caseID,
		domain.ChatTurn{Role: domain.RoleStudent, Content: message, SentAt: now},
		domain.ChatTurn{Role: domain.RolePatient, Content: reply, SentAt: now},
	)
	if err != nil {
		return "", fmt.Errorf("append transcript: %w", err)
	}
	return reply, nil
}

// RequestHint generates a Socratic follow-up question, then consumes one
// hint from today's budget. The budget is only charged for a successfully
// generated hint: a failed generation commits nothing, so a retry does not
// cost extra. Budget exhaustion is an expected terminal state, returned as
// domain.ErrBudgetExhausted before any generation happens.
func (s *EncounterService) RequestHint(ctx context.Context, userID, caseID string) (string, int, error) {
	doc, err := s.cases.Get(ctx, caseID)
	if err != nil {
		return "", 0, err
	}

	remaining, err := s.budget.Remaining(ctx, userID, s.now())
	if err != nil {
		return "", 0, err
	}
	if remaining <= 0 {
		return "", 0, domain.ErrBudgetExhausted
	}

	history, err := s.transcripts.Get(ctx, userID, caseID)
	if err != nil {
		return "", remaining, fmt.Errorf("load transcript: %w", err)
	}
	hint, err := s.sim.GenerateHint(ctx, doc, history)
	if err != nil {
		return "", remaining, err
	}

	remaining, err = s.budget.ConsumeOne(ctx, userID, s.now())
	if err != nil {
		return "", 0, err
	}
	s.log.Debug("hint issued", "case_id", caseID, "remaining", remaining)
	return hint, remaining, nil
}

// HintsRemaining reports today's remaining hint quota.
func (s *EncounterService) HintsRemaining(ctx context.Context, userID string) (int, error) {
	return s.budget.Remaining(ctx, userID, s.now())
}

// Transcript returns the stored encounter transcript.
func (s *EncounterService) Transcript(ctx context.Context, userID, caseID string) ([]domain.ChatTurn, error) {
	return s.transcripts.Get(ctx, userID, caseID)
}

// SOAPNote drafts the documentation note for a case.
func (s *EncounterService) SOAPNote(ctx context.Context, caseID string) (string, error) {
	doc, err := s.cases.Get(ctx, caseID)
	if err != nil {
		return "", err
	}
	return s.sim.GenerateSOAPNote(ctx, doc)
}
