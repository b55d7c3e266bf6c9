package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"virtual-patient-service/internal/domain"
	"virtual-patient-service/internal/logger"
)

// failedEvalNote is recorded as the justification when the evaluator's
// response cannot be parsed into the expected shape.
const failedEvalNote = "evaluation failed: the response could not be scored"

// PatientSimulator is the typed adapter over the generative-language API:
// case generation, conversational roleplay, hinting, transcript evaluation,
// and SOAP-note drafting. Response shapes are validated here, at the
// boundary, so nothing unchecked flows into the scoring pipeline.
type PatientSimulator struct {
	log    *logger.Logger
	client Client
}

func NewPatientSimulator(log *logger.Logger, client Client) *PatientSimulator {
	return &PatientSimulator{log: log, client: client}
}

// GenerateCase requests a structured case document. A malformed or
// contract-violating response surfaces as a retryable generation failure;
// nothing partial is committed.
func (p *PatientSimulator) GenerateCase(ctx context.Context, filters domain.CaseFilters) (domain.CaseDocument, error) {
	raw, err := p.client.CompleteJSON(ctx, caseSystemPrompt, caseUserPrompt(filters), "clinical_case", caseSchema())
	if err != nil {
		return domain.CaseDocument{}, fmt.Errorf("%w: %v", domain.ErrGenerationFailure, err)
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return domain.CaseDocument{}, fmt.Errorf("%w: %v", domain.ErrGenerationFailure, err)
	}
	var doc domain.CaseDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.CaseDocument{}, fmt.Errorf("%w: %v", domain.ErrGenerationFailure, err)
	}

	doc.ID = uuid.NewString()
	doc.TrainingPhase = filters.TrainingPhase
	if err := doc.Validate(); err != nil {
		return domain.CaseDocument{}, fmt.Errorf("%w: %v", domain.ErrGenerationFailure, err)
	}
	return doc, nil
}

// RoleplayTurn produces the patient's next free-text reply.
func (p *PatientSimulator) RoleplayTurn(ctx context.Context, c domain.CaseDocument, history []domain.ChatTurn, userMessage string) (string, error) {
	user := renderTranscript(history) + domain.RoleStudent + ": " + userMessage
	reply, err := p.client.CompleteText(ctx, personaPrompt(c), user)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGenerationFailure, err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("%w: empty patient reply", domain.ErrGenerationFailure)
	}
	return reply, nil
}

// GenerateHint produces one Socratic follow-up question.
func (p *PatientSimulator) GenerateHint(ctx context.Context, c domain.CaseDocument, history []domain.ChatTurn) (string, error) {
	user := fmt.Sprintf("Chief complaint: %s\n\nTranscript so far:\n%s", c.ChiefComplaint, renderTranscript(history))
	hint, err := p.client.CompleteText(ctx, hintSystemPrompt, user)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGenerationFailure, err)
	}
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return "", fmt.Errorf("%w: empty hint", domain.ErrGenerationFailure)
	}
	return hint, nil
}

// EvaluateEPAs scores the transcript on the two fixed competencies. It fails
// soft: a malformed evaluator response degrades to zero scores with a noted
// justification instead of an error, so case completion is never blocked on
// the evaluator.
func (p *PatientSimulator) EvaluateEPAs(ctx context.Context, c domain.CaseDocument, transcript []domain.ChatTurn) domain.EPAEvaluation {
	raw, err := p.client.CompleteJSON(ctx, evalSystemPrompt, evalUserPrompt(c, transcript), "epa_evaluation", evalSchema())
	if err != nil {
		p.log.Warn("epa evaluation failed, degrading to zero scores", "error", err)
		return zeroEvaluation()
	}

	eval, ok := parseEvaluation(raw)
	if !ok {
		p.log.Warn("epa evaluation unparseable, degrading to zero scores")
		return zeroEvaluation()
	}
	return eval
}

// GenerateSOAPNote drafts the four-section note for a completed case.
func (p *PatientSimulator) GenerateSOAPNote(ctx context.Context, c domain.CaseDocument) (string, error) {
	note, err := p.client.CompleteText(ctx, soapSystemPrompt, soapUserPrompt(c))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGenerationFailure, err)
	}
	return strings.TrimSpace(note), nil
}

func zeroEvaluation() domain.EPAEvaluation {
	return domain.EPAEvaluation{
		History:      domain.EPAScore{Justification: failedEvalNote},
		PhysicalExam: domain.EPAScore{Justification: failedEvalNote},
	}
}

// parseEvaluation enforces the output contract: exactly two entries, one per
// competency, scores within [0,10].
func parseEvaluation(raw map[string]any) (domain.EPAEvaluation, bool) {
	items, ok := raw["evaluations"].([]any)
	if !ok || len(items) != 2 {
		return domain.EPAEvaluation{}, false
	}

	var eval domain.EPAEvaluation
	seen := map[string]bool{}
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			return domain.EPAEvaluation{}, false
		}
		epa, _ := entry["epa"].(string)
		score, ok := entry["score"].(float64)
		if !ok || math.IsNaN(score) {
			return domain.EPAEvaluation{}, false
		}
		score = math.Min(math.Max(score, 0), 10)
		justification, _ := entry["justification"].(string)

		switch normalizeEPA(epa) {
		case domain.EPAHistoryTaking:
			eval.History = domain.EPAScore{Score: score, Justification: justification}
		case domain.EPAPhysicalExam:
			eval.PhysicalExam = domain.EPAScore{Score: score, Justification: justification}
		default:
			return domain.EPAEvaluation{}, false
		}
		seen[normalizeEPA(epa)] = true
	}
	if !seen[domain.EPAHistoryTaking] || !seen[domain.EPAPhysicalExam] {
		return domain.EPAEvaluation{}, false
	}
	return eval, true
}

func normalizeEPA(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	switch s {
	case "history_taking", "history", "historytaking":
		return domain.EPAHistoryTaking
	case "physical_exam", "physical_examination", "exam", "physicalexam":
		return domain.EPAPhysicalExam
	}
	return s
}
