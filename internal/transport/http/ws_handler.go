package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"virtual-patient-service/internal/app"
	"virtual-patient-service/internal/domain"
	"virtual-patient-service/internal/logger"
)

// WSHandler drives one live encounter per connection: case generation,
// patient roleplay, hints, and the final submission.
type WSHandler struct {
	log         *logger.Logger
	encounters  *app.EncounterService
	completions *app.CompletionService
	upgrader    websocket.Upgrader
}

func NewWSHandler(log *logger.Logger, encounters *app.EncounterService, completions *app.CompletionService) *WSHandler {
	return &WSHandler{
		log:         log,
		encounters:  encounters,
		completions: completions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type messagePayload struct {
	Content string `json:"content"`
}

type finishPayload struct {
	DiagnosisID string            `json:"diagnosisId"`
	Answers     map[string]string `json:"answers"`
}

type hintPayload struct {
	Hint      string `json:"hint"`
	Remaining int    `json:"remaining"`
}

type textPayload struct {
	Text string `json:"text"`
}

// caseView is the client-facing projection of a case. Correctness flags and
// MCQ explanations stay server-side until the case is finished.
type caseView struct {
	ID                      string                `json:"id"`
	Title                   string                `json:"title"`
	Specialty               string                `json:"specialty"`
	Patient                 domain.PatientProfile `json:"patient"`
	ChiefComplaint          string                `json:"chiefComplaint"`
	HistoryOfPresentIllness string                `json:"historyOfPresentIllness"`
	PhysicalExamFindings    string                `json:"physicalExamFindings"`
	LabResults              string                `json:"labResults"`
	Diagnoses               []diagnosisView       `json:"diagnoses"`
	Questions               []questionView        `json:"questions"`
}

type diagnosisView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type questionView struct {
	ID      string       `json:"id"`
	Prompt  string       `json:"prompt"`
	Options []optionView `json:"options"`
}

type optionView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// reveal accompanies the final result: the answer key held back by caseView.
type revealPayload struct {
	CorrectDiagnosisID string            `json:"correctDiagnosisId"`
	Explanations       map[string]string `json:"explanations"`
}

type resultPayload struct {
	Result domain.CaseResult `json:"result"`
	Reveal revealPayload     `json:"reveal"`
}

func viewOf(doc domain.CaseDocument) caseView {
	v := caseView{
		ID:                      doc.ID,
		Title:                   doc.Title,
		Specialty:               doc.Specialty,
		Patient:                 doc.Patient,
		ChiefComplaint:          doc.ChiefComplaint,
		HistoryOfPresentIllness: doc.HistoryOfPresentIllness,
		PhysicalExamFindings:    doc.PhysicalExamFindings,
		LabResults:              doc.LabResults,
	}
	for _, d := range doc.Diagnoses {
		v.Diagnoses = append(v.Diagnoses, diagnosisView{ID: d.ID, Name: d.Name})
	}
	for _, q := range doc.Questions {
		qv := questionView{ID: q.ID, Prompt: q.Prompt}
		for _, o := range q.Options {
			qv.Options = append(qv.Options, optionView{ID: o.ID, Text: o.Text})
		}
		v.Questions = append(v.Questions, qv)
	}
	return v
}

func revealOf(doc domain.CaseDocument) revealPayload {
	reveal := revealPayload{
		CorrectDiagnosisID: doc.CorrectDiagnosisID(),
		Explanations:       make(map[string]string, len(doc.Questions)),
	}
	for _, q := range doc.Questions {
		reveal.Explanations[q.ID] = q.Explanation
	}
	return reveal
}

// ServeWS upgrades the request and runs the encounter loop. A connection
// either resumes an existing case (caseId query param) or starts a fresh one
// with a "start" message carrying the case filters.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}
	caseID := r.URL.Query().Get("caseId")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})

	// On a write error the writer closes the connection (unblocking the read
	// loop) and keeps draining send so the read loop can never block on a
	// full buffer.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Warn("ws write error", "error", err)
				conn.Close()
				for range send {
				}
				return
			}
		}
	}()

	ctx := r.Context()

	if caseID != "" {
		doc, err := h.encounters.GetCase(ctx, caseID)
		if err != nil {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			close(send)
			<-writerDone
			return
		}
		send <- outboundMessage[any]{Type: "case", Payload: viewOf(doc)}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}

		switch inbound.Type {
		case "start":
			var filters domain.CaseFilters
			if len(inbound.Payload) > 0 {
				if err := json.Unmarshal(inbound.Payload, &filters); err != nil {
					send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid start payload"}}
					continue
				}
			}
			doc, err := h.encounters.StartCase(ctx, filters)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			caseID = doc.ID
			send <- outboundMessage[any]{Type: "case", Payload: viewOf(doc)}

		case "message":
			if caseID == "" {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "no active case"}}
				continue
			}
			var payload messagePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.Content == "" {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid message payload"}}
				continue
			}
			reply, err := h.encounters.PatientReply(ctx, userID, caseID, payload.Content)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "patientReply", Payload: textPayload{Text: reply}}

		case "hint":
			if caseID == "" {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "no active case"}}
				continue
			}
			hint, remaining, err := h.encounters.RequestHint(ctx, userID, caseID)
			if errors.Is(err, domain.ErrBudgetExhausted) {
				send <- outboundMessage[any]{Type: "hintsExhausted", Payload: hintPayload{Remaining: 0}}
				continue
			}
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "hint", Payload: hintPayload{Hint: hint, Remaining: remaining}}

		case "soap":
			if caseID == "" {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "no active case"}}
				continue
			}
			note, err := h.encounters.SOAPNote(ctx, caseID)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "soapNote", Payload: textPayload{Text: note}}

		case "finish":
			if caseID == "" {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "no active case"}}
				continue
			}
			var payload finishPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid finish payload"}}
				continue
			}
			doc, err := h.encounters.GetCase(ctx, caseID)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			result, err := h.completions.FinishCase(ctx, userID, caseID, payload.DiagnosisID, payload.Answers)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "result", Payload: resultPayload{Result: result, Reveal: revealOf(doc)}}

		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(send)
	<-writerDone
}
