package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"virtual-patient-service/internal/domain"
	"virtual-patient-service/internal/logger"
	"virtual-patient-service/internal/scoring"
)

// CompletionService owns the finish-case pipeline: grade the diagnosis and
// MCQs against the authoritative case, evaluate the transcript, aggregate
// the rubric, advance the streak, and persist the completion records.
//
// The persistence writes (case log, streak, progress, leaderboard,
// notification) are issued concurrently without cross-record atomicity: the
// backing store offers no client-side transactions across tables. A failure
// is reported as a hard error while earlier writes may already have landed;
// callers must treat it as "state may be partially updated".
type CompletionService struct {
	log           *logger.Logger
	sim           Simulator
	cases         CaseStore
	transcripts   TranscriptStore
	budget        HintBudget
	maxHints      int
	results       ResultStore
	streaks       StreakStore
	progress      ProgressStore
	leaderboard   LeaderboardStore
	notifications NotificationStore
	profiles      ProfileStore
	now           func() time.Time
}

type CompletionStores struct {
	Results       ResultStore
	Streaks       StreakStore
	Progress      ProgressStore
	Leaderboard   LeaderboardStore
	Notifications NotificationStore
	Profiles      ProfileStore
}

func NewCompletionService(log *logger.Logger, sim Simulator, cases CaseStore, transcripts TranscriptStore, budget HintBudget, maxHints int, stores CompletionStores) *CompletionService {
	return &CompletionService{
		log:           log,
		sim:           sim,
		cases:         cases,
		transcripts:   transcripts,
		budget:        budget,
		maxHints:      maxHints,
		results:       stores.Results,
		streaks:       stores.Streaks,
		progress:      stores.Progress,
		leaderboard:   stores.Leaderboard,
		notifications: stores.Notifications,
		profiles:      stores.Profiles,
		now:           time.Now,
	}
}

// WithClock is test-only for deterministic timestamps.
func (s *CompletionService) WithClock(now func() time.Time) *CompletionService {
	s.now = now
	return s
}

// FinishCase completes the session: answers maps question ID to the chosen
// option ID. The returned result carries the final score and its breakdown.
func (s *CompletionService) FinishCase(ctx context.Context, userID, caseID, diagnosisID string, answers map[string]string) (domain.CaseResult, error) {
	doc, err := s.cases.Get(ctx, caseID)
	if err != nil {
		return domain.CaseResult{}, err
	}

	diagnosisCorrect, err := gradeDiagnosis(doc, diagnosisID)
	if err != nil {
		return domain.CaseResult{}, err
	}
	mcqCorrect := gradeMCQs(doc, answers)

	transcript, err := s.transcripts.Get(ctx, userID, caseID)
	if err != nil {
		return domain.CaseResult{}, fmt.Errorf("load transcript: %w", err)
	}

	// Evaluation never blocks completion; it degrades to zero scores.
	eval := s.sim.EvaluateEPAs(ctx, doc, transcript)

	now := s.now()
	hintsUsed, err := s.hintsUsed(ctx, userID, now)
	if err != nil {
		return domain.CaseResult{}, err
	}

	final, breakdown := scoring.Aggregate(scoring.Input{
		DiagnosisCorrect:  diagnosisCorrect,
		MCQCorrectCount:   mcqCorrect,
		MCQTotal:          len(doc.Questions),
		HistoryScore:      eval.History.Score,
		PhysicalExamScore: eval.PhysicalExam.Score,
		HintsUsed:         hintsUsed,
	})

	result := domain.CaseResult{
		CaseID:           doc.ID,
		CaseTitle:        doc.Title,
		UserID:           userID,
		DiagnosisCorrect: diagnosisCorrect,
		MCQCorrectCount:  mcqCorrect,
		MCQTotal:         len(doc.Questions),
		EPA:              eval,
		HintsUsed:        hintsUsed,
		FinalScore:       final,
		Breakdown:        breakdown,
		CompletedAt:      now,
	}

	if err := s.persistCompletion(ctx, result, now); err != nil {
		return domain.CaseResult{}, fmt.Errorf("persist completion: %w", err)
	}

	if err := s.transcripts.Clear(ctx, userID, caseID); err != nil {
		// The transcript is single-device best-effort state; a failed clear
		// only risks a stale draft, not a wrong score.
		s.log.Warn("clear transcript failed", "case_id", caseID, "error", err)
	}

	s.log.Info("case completed",
		"case_id", doc.ID, "final_score", final, "hints_used", hintsUsed)
	return result, nil
}

// hintsUsed derives usage from the budget: max daily hints minus what is
// left at finish time.
func (s *CompletionService) hintsUsed(ctx context.Context, userID string, now time.Time) (int, error) {
	remaining, err := s.budget.Remaining(ctx, userID, now)
	if err != nil {
		return 0, fmt.Errorf("read hint budget: %w", err)
	}
	used := s.maxHints - remaining
	if used < 0 {
		used = 0
	}
	return used, nil
}

func (s *CompletionService) persistCompletion(ctx context.Context, result domain.CaseResult, now time.Time) error {
	userID := result.UserID

	prevStreak, err := s.streaks.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("read streak: %w", err)
	}
	newStreak := scoring.AdvanceStreak(prevStreak, userID, now)

	prevProgress, err := s.progress.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("read progress: %w", err)
	}
	newProgress := domain.Progress{
		UserID:       userID,
		Completed:    prevProgress.Completed + 1,
		AverageScore: scoring.NextAverage(prevProgress.AverageScore, prevProgress.Completed, result.FinalScore),
	}

	displayName := userID
	if profile, err := s.profiles.Get(ctx, userID); err == nil {
		displayName = profile.DisplayName
	}

	notification := domain.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      "case_completed",
		Title:     "Case completed",
		Message:   fmt.Sprintf("You scored %.2f/10 on %q.", result.FinalScore, result.CaseTitle),
		Link:      "/cases/" + result.CaseID,
		CreatedAt: now,
	}

	// Independent best-effort writes: all issued, no rollback on partial
	// failure (see type comment).
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.results.Append(gctx, result) })
	g.Go(func() error { return s.streaks.Put(gctx, newStreak) })
	g.Go(func() error { return s.progress.Put(gctx, newProgress) })
	g.Go(func() error {
		return s.leaderboard.Upsert(gctx, domain.LeaderboardEntry{
			UserID:       userID,
			DisplayName:  displayName,
			AverageScore: newProgress.AverageScore,
			Completed:    newProgress.Completed,
		})
	})
	g.Go(func() error { return s.notifications.Append(gctx, notification) })
	return g.Wait()
}

func gradeDiagnosis(doc domain.CaseDocument, diagnosisID string) (bool, error) {
	for _, d := range doc.Diagnoses {
		if d.ID == diagnosisID {
			return d.Correct, nil
		}
	}
	return false, domain.ErrDiagnosisNotFound
}

// gradeMCQs counts correct picks; unanswered or unknown questions score zero.
func gradeMCQs(doc domain.CaseDocument, answers map[string]string) int {
	correct := 0
	for _, q := range doc.Questions {
		chosen, ok := answers[q.ID]
		if !ok {
			continue
		}
		for _, o := range q.Options {
			if o.ID == chosen && o.Correct {
				correct++
				break
			}
		}
	}
	return correct
}
