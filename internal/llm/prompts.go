package llm

import (
	"fmt"
	"strings"

	"virtual-patient-service/internal/domain"
)

const caseSystemPrompt = `You are a medical case author for a clinical education simulator.
Author a realistic, internally consistent clinical case. Mark exactly one
diagnosis as correct and include at least one multiple-choice question, each
with exactly one correct option and a short explanation.`

const evalSystemPrompt = `You are a clinical educator grading a student encounter.
Score the student's performance on exactly two competencies:
"history_taking" and "physical_exam", each 0-10 with a short justification.
Base the scores only on the transcript and the authoritative case facts.`

const soapSystemPrompt = `You are a clinician writing documentation.
Write a SOAP note with exactly four labeled sections:
Subjective, Objective, Assessment, Plan.`

func caseUserPrompt(f domain.CaseFilters) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Training phase: %s\n", orAny(string(f.TrainingPhase)))
	fmt.Fprintf(&b, "Specialties: %s\n", orAny(strings.Join(f.Specialties, ", ")))
	fmt.Fprintf(&b, "Competencies to exercise: %s\n", orAny(strings.Join(f.EPAs, ", ")))
	if f.ChallengeMode {
		b.WriteString("Challenge mode: make the presentation atypical and the differential tight.\n")
	}
	return b.String()
}

// personaPrompt constrains the roleplay: the patient never volunteers unasked
// information and never states a diagnosis.
func personaPrompt(c domain.CaseDocument) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a %d-year-old %s patient in a clinical encounter.\n",
		c.Patient.Name, c.Patient.Age, c.Patient.Gender)
	fmt.Fprintf(&b, "Chief complaint: %s\n", c.ChiefComplaint)
	fmt.Fprintf(&b, "History of present illness (your lived experience): %s\n", c.HistoryOfPresentIllness)
	fmt.Fprintf(&b, "Physical exam findings (reveal only when the relevant exam is performed): %s\n", c.PhysicalExamFindings)
	fmt.Fprintf(&b, "Lab results (reveal only when the student orders them): %s\n", c.LabResults)
	b.WriteString(`Rules:
- Stay in character as the patient. Speak plainly, not clinically.
- Answer only what the student asks. Never volunteer unasked information.
- Never state, suggest, or confirm a diagnosis.
- If the student asks something the case does not cover, improvise a benign, consistent answer.`)
	return b.String()
}

const hintSystemPrompt = `You are a clinical tutor observing a student interviewing a virtual patient.
Offer exactly one short Socratic follow-up question that nudges the student
toward an unexplored, clinically relevant line of inquiry. It must be phrased
as a question, never a statement, and must not reveal the diagnosis.`

// renderTranscript flattens the ordered turns, skipping system placeholders.
func renderTranscript(turns []domain.ChatTurn) string {
	var b strings.Builder
	for _, t := range turns {
		if t.Role == domain.RoleSystem {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
	}
	return b.String()
}

func evalUserPrompt(c domain.CaseDocument, turns []domain.ChatTurn) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Authoritative history of present illness:\n%s\n\n", c.HistoryOfPresentIllness)
	fmt.Fprintf(&b, "Authoritative physical exam findings:\n%s\n\n", c.PhysicalExamFindings)
	fmt.Fprintf(&b, "Encounter transcript:\n%s", renderTranscript(turns))
	return b.String()
}

func soapUserPrompt(c domain.CaseDocument) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Case: %s (%s)\n", c.Title, c.Specialty)
	fmt.Fprintf(&b, "Chief complaint: %s\n", c.ChiefComplaint)
	fmt.Fprintf(&b, "HPI: %s\n", c.HistoryOfPresentIllness)
	fmt.Fprintf(&b, "Exam: %s\n", c.PhysicalExamFindings)
	fmt.Fprintf(&b, "Labs: %s\n", c.LabResults)
	return b.String()
}

func orAny(s string) string {
	if strings.TrimSpace(s) == "" {
		return "any"
	}
	return s
}

func caseSchema() map[string]any {
	option := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id":      map[string]any{"type": "string"},
			"text":    map[string]any{"type": "string"},
			"correct": map[string]any{"type": "boolean"},
		},
		"required": []string{"id", "text", "correct"},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":     map[string]any{"type": "string"},
			"specialty": map[string]any{"type": "string"},
			"patient": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":   map[string]any{"type": "string"},
					"age":    map[string]any{"type": "integer"},
					"gender": map[string]any{"type": "string"},
				},
				"required": []string{"name", "age", "gender"},
			},
			"chiefComplaint":          map[string]any{"type": "string"},
			"historyOfPresentIllness": map[string]any{"type": "string"},
			"physicalExamFindings":    map[string]any{"type": "string"},
			"labResults":              map[string]any{"type": "string"},
			"diagnoses": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":      map[string]any{"type": "string"},
						"name":    map[string]any{"type": "string"},
						"correct": map[string]any{"type": "boolean"},
					},
					"required": []string{"id", "name", "correct"},
				},
			},
			"questions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":          map[string]any{"type": "string"},
						"prompt":      map[string]any{"type": "string"},
						"options":     map[string]any{"type": "array", "items": option},
						"explanation": map[string]any{"type": "string"},
					},
					"required": []string{"id", "prompt", "options", "explanation"},
				},
			},
		},
		"required": []string{
			"title", "specialty", "patient", "chiefComplaint",
			"historyOfPresentIllness", "physicalExamFindings", "labResults",
			"diagnoses", "questions",
		},
	}
}

func evalSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"evaluations": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"epa":           map[string]any{"type": "string"},
						"score":         map[string]any{"type": "number"},
						"justification": map[string]any{"type": "string"},
					},
					"required": []string{"epa", "score", "justification"},
				},
			},
		},
		"required": []string{"evaluations"},
	}
}
