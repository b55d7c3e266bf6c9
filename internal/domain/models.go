package domain

import "time"

// TrainingPhase identifies where the student is in their program
// (e.g. "preclinical", "clerkship", "residency").
type TrainingPhase string

// Names of the two scored clinical competencies (EPAs).
const (
	EPAHistoryTaking = "history_taking"
	EPAPhysicalExam  = "physical_exam"
)

// CaseFilters drive case generation.
type CaseFilters struct {
	TrainingPhase TrainingPhase `json:"trainingPhase"`
	Specialties   []string      `json:"specialties"`
	EPAs          []string      `json:"epas"`
	ChallengeMode bool          `json:"challengeMode"`
}

// PatientProfile is the persona the simulator roleplays.
type PatientProfile struct {
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Gender string `json:"gender"`
}

// Diagnosis is one differential option; exactly one per case is marked correct.
type Diagnosis struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Correct bool   `json:"correct"`
}

// Option represents a possible answer for a question.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question models an MCQ question with exactly one correct option.
type Question struct {
	ID          string   `json:"id"`
	Prompt      string   `json:"prompt"`
	Options     []Option `json:"options"`
	Explanation string   `json:"explanation"`
}

// CaseDocument is a generated clinical scenario bundle.
type CaseDocument struct {
	ID                      string         `json:"id"`
	Title                   string         `json:"title"`
	Specialty               string         `json:"specialty"`
	TrainingPhase           TrainingPhase  `json:"trainingPhase"`
	Patient                 PatientProfile `json:"patient"`
	ChiefComplaint          string         `json:"chiefComplaint"`
	HistoryOfPresentIllness string         `json:"historyOfPresentIllness"`
	PhysicalExamFindings    string         `json:"physicalExamFindings"`
	LabResults              string         `json:"labResults"`
	Diagnoses               []Diagnosis    `json:"diagnoses"`
	Questions               []Question     `json:"questions"`
}

// Validate enforces the generation contract: exactly one diagnosis marked
// correct and at least one MCQ, each with exactly one correct option.
// Anything else is a retryable generation failure.
func (c CaseDocument) Validate() error {
	correct := 0
	for _, d := range c.Diagnoses {
		if d.Correct {
			correct++
		}
	}
	if correct != 1 {
		return ErrInvalidCase
	}
	if len(c.Questions) == 0 {
		return ErrInvalidCase
	}
	for _, q := range c.Questions {
		correct = 0
		for _, o := range q.Options {
			if o.Correct {
				correct++
			}
		}
		if correct != 1 {
			return ErrInvalidCase
		}
	}
	return nil
}

// CorrectDiagnosisID returns the ID of the marked-correct diagnosis.
func (c CaseDocument) CorrectDiagnosisID() string {
	for _, d := range c.Diagnoses {
		if d.Correct {
			return d.ID
		}
	}
	return ""
}

// Chat turn roles. System turns (UI placeholders such as "Thinking…") are
// excluded from transcripts sent for evaluation.
const (
	RoleStudent = "student"
	RolePatient = "patient"
	RoleSystem  = "system"
)

// ChatTurn is one ordered message of the encounter transcript.
type ChatTurn struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	SentAt  time.Time `json:"sentAt"`
}

// EPAScore is one scored competency with its justification text.
type EPAScore struct {
	Score         float64 `json:"score"` // 0..10
	Justification string  `json:"justification"`
}

// EPAEvaluation is the result of the transcript evaluation: exactly the two
// fixed competencies.
type EPAEvaluation struct {
	History      EPAScore `json:"history"`
	PhysicalExam EPAScore `json:"physicalExam"`
}

// ScoreBreakdown keeps the four weighted components before penalty
// subtraction, for display.
type ScoreBreakdown struct {
	Diagnosis     float64 `json:"diagnosis"`
	Knowledge     float64 `json:"knowledge"`
	HistoryTaking float64 `json:"historyTaking"`
	PhysicalExam  float64 `json:"physicalExam"`
}

// CaseResult is the outcome of one completed simulation session.
type CaseResult struct {
	CaseID           string         `json:"caseId"`
	CaseTitle        string         `json:"caseTitle"`
	UserID           string         `json:"userId"`
	DiagnosisCorrect bool           `json:"diagnosisCorrect"`
	MCQCorrectCount  int            `json:"mcqCorrectCount"`
	MCQTotal         int            `json:"mcqTotal"`
	EPA              EPAEvaluation  `json:"epaScores"`
	HintsUsed        int            `json:"hintsUsed"`
	FinalScore       float64        `json:"finalScore"`
	Breakdown        ScoreBreakdown `json:"scoreBreakdown"`
	CompletedAt      time.Time      `json:"completedAt"`
}

// StreakState is one record per user. MaxStreak >= CurrentStreak always.
type StreakState struct {
	UserID        string    `json:"userId"`
	CurrentStreak int       `json:"currentStreak"`
	MaxStreak     int       `json:"maxStreak"`
	LastActiveDay time.Time `json:"lastActiveDay"` // UTC midnight
}

// Progress is the lifetime completion state feeding the leaderboard average.
type Progress struct {
	UserID       string  `json:"userId"`
	Completed    int     `json:"completed"`
	AverageScore float64 `json:"averageScore"`
}

// LeaderboardEntry is one row per user holding a running average score.
type LeaderboardEntry struct {
	UserID       string  `json:"userId"`
	DisplayName  string  `json:"displayName"`
	AverageScore float64 `json:"averageScore"`
	Completed    int     `json:"completed"`
}

// Notification is an append-only inbox record.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	Link      string    `json:"link,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Profile is the stored user record; TrainingPhase lives in account metadata.
type Profile struct {
	UserID        string        `json:"userId"`
	DisplayName   string        `json:"displayName"`
	TrainingPhase TrainingPhase `json:"trainingPhase"`
}
