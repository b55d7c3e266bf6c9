package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"virtual-patient-service/internal/app"
	"virtual-patient-service/internal/domain"
	"virtual-patient-service/internal/logger"
)

// APIHandler serves the read-side REST surface: leaderboard, streaks,
// notifications, and profiles.
type APIHandler struct {
	log   *logger.Logger
	board *app.BoardService
}

func NewAPIHandler(log *logger.Logger, board *app.BoardService) *APIHandler {
	return &APIHandler{log: log, board: board}
}

// NewRouter mounts the websocket encounter endpoint and the REST API.
func NewRouter(ws *WSHandler, api *APIHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", ws.ServeWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/leaderboard", api.Leaderboard)
	mux.HandleFunc("/api/streak", api.Streak)
	mux.HandleFunc("/api/notifications", api.Notifications)
	mux.HandleFunc("/api/notifications/read", api.MarkNotificationsRead)
	mux.HandleFunc("/api/profile", api.Profile)
	return mux
}

func (h *APIHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	entries, err := h.board.Top(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, map[string]any{"entries": entries})
}

func (h *APIHandler) Streak(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}
	streak, err := h.board.Streak(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, streak)
}

func (h *APIHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}
	list, err := h.board.Notifications(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if list == nil {
		list = []domain.Notification{}
	}
	h.writeJSON(w, map[string]any{"notifications": list})
}

type markReadRequest struct {
	UserID         string `json:"userId"`
	NotificationID string `json:"notificationId"` // empty marks everything read
}

func (h *APIHandler) MarkNotificationsRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req markReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	var err error
	if req.NotificationID == "" {
		err = h.board.MarkAllRead(r.Context(), req.UserID)
	} else {
		err = h.board.MarkRead(r.Context(), req.UserID, req.NotificationID)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) Profile(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		userID := r.URL.Query().Get("userId")
		if userID == "" {
			http.Error(w, "missing userId", http.StatusBadRequest)
			return
		}
		profile, err := h.board.Profile(r.Context(), userID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, profile)
	case http.MethodPut:
		var profile domain.Profile
		if err := json.NewDecoder(r.Body).Decode(&profile); err != nil || profile.UserID == "" {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if err := h.board.SaveProfile(r.Context(), profile); err != nil {
			h.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn("write response failed", "error", err)
	}
}

func (h *APIHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrProfileNotFound), errors.Is(err, domain.ErrCaseNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		h.log.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
