// Package scoring holds the case scoring rubric and the streak/progress
// state machine. Everything here is a pure function of its inputs so the
// completion flow stays deterministic and reproducible.
package scoring

import (
	"time"

	"virtual-patient-service/internal/domain"
)

// Rubric weights, points out of 10 total.
const (
	DiagnosisMax = 4.0
	// When a case carries zero MCQs the knowledge points move to the
	// diagnosis line so 10 stays reachable.
	DiagnosisMaxNoMCQ = 6.0
	KnowledgeMax      = 2.0
	HistoryMax        = 2.5
	PhysicalExamMax   = 1.5
	HintPenalty       = 0.5
	EPAScale          = 10.0
	MaxScore          = 10.0
)

// Input collects the independently-computed sub-scores of one session.
type Input struct {
	DiagnosisCorrect  bool
	MCQCorrectCount   int
	MCQTotal          int
	HistoryScore      float64 // 0..10
	PhysicalExamScore float64 // 0..10
	HintsUsed         int
}

// Aggregate combines the sub-scores into a clamped final score and its
// breakdown: finalScore == clamp(diagnosis + knowledge + history + exam
// - hintsUsed*0.5, 0, 10).
func Aggregate(in Input) (float64, domain.ScoreBreakdown) {
	diagMax := DiagnosisMax
	knowledge := 0.0
	if in.MCQTotal == 0 {
		diagMax = DiagnosisMaxNoMCQ
	} else {
		knowledge = float64(in.MCQCorrectCount) / float64(in.MCQTotal) * KnowledgeMax
	}

	breakdown := domain.ScoreBreakdown{
		Knowledge:     knowledge,
		HistoryTaking: in.HistoryScore / EPAScale * HistoryMax,
		PhysicalExam:  in.PhysicalExamScore / EPAScale * PhysicalExamMax,
	}
	if in.DiagnosisCorrect {
		breakdown.Diagnosis = diagMax
	}

	penalty := float64(in.HintsUsed) * HintPenalty
	sum := breakdown.Diagnosis + breakdown.Knowledge + breakdown.HistoryTaking + breakdown.PhysicalExam
	return clamp(sum-penalty, 0, MaxScore), breakdown
}

// NextAverage folds one more final score into a running mean.
func NextAverage(oldAvg float64, priorCompleted int, finalScore float64) float64 {
	return (oldAvg*float64(priorCompleted) + finalScore) / float64(priorCompleted+1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// AdvanceStreak computes the streak state after a completion at now.
// Dates are normalized to UTC midnight. Completing a second case the same
// day leaves the current streak unchanged; a completion the day after the
// last active day extends it; any gap resets it to 1. MaxStreak never
// decreases.
func AdvanceStreak(prev *domain.StreakState, userID string, now time.Time) domain.StreakState {
	today := utcMidnight(now)

	next := domain.StreakState{UserID: userID, LastActiveDay: today}
	if prev == nil || prev.LastActiveDay.IsZero() {
		next.CurrentStreak = 1
	} else {
		switch last := utcMidnight(prev.LastActiveDay); {
		case last.Equal(today):
			next.CurrentStreak = prev.CurrentStreak
		case last.Equal(today.AddDate(0, 0, -1)):
			next.CurrentStreak = prev.CurrentStreak + 1
		default:
			next.CurrentStreak = 1
		}
		next.MaxStreak = prev.MaxStreak
	}
	if next.CurrentStreak > next.MaxStreak {
		next.MaxStreak = next.CurrentStreak
	}
	return next
}

func utcMidnight(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
