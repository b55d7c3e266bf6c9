package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"virtual-patient-service/internal/app"
	"virtual-patient-service/internal/domain"
	"virtual-patient-service/internal/infra/memory"
	"virtual-patient-service/internal/logger"
)

func newAPIServer(t *testing.T) (*httptest.Server, *memory.Leaderboard, *memory.NotificationStore, *memory.ProfileStore) {
	t.Helper()
	log := logger.NewNop()
	leaderboard := memory.NewLeaderboard()
	notifications := memory.NewNotificationStore()
	profiles := memory.NewProfileStore()
	board := app.NewBoardService(log, leaderboard, memory.NewStreakStore(), notifications, profiles, 0)

	mux := http.NewServeMux()
	api := NewAPIHandler(log, board)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("/api/leaderboard", api.Leaderboard)
	mux.HandleFunc("/api/streak", api.Streak)
	mux.HandleFunc("/api/notifications", api.Notifications)
	mux.HandleFunc("/api/notifications/read", api.MarkNotificationsRead)
	mux.HandleFunc("/api/profile", api.Profile)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, leaderboard, notifications, profiles
}

func TestLeaderboardEndpoint(t *testing.T) {
	server, leaderboard, _, _ := newAPIServer(t)
	ctx := context.Background()

	for _, e := range []domain.LeaderboardEntry{
		{UserID: "u1", DisplayName: "Dana", AverageScore: 9.1, Completed: 12},
		{UserID: "u2", DisplayName: "Sam", AverageScore: 7.4, Completed: 3},
	} {
		if err := leaderboard.Upsert(ctx, e); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	resp, err := http.Get(server.URL + "/api/leaderboard?limit=5")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body struct {
		Entries []domain.LeaderboardEntry `json:"entries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Entries) != 2 || body.Entries[0].UserID != "u1" {
		t.Fatalf("entries = %+v", body.Entries)
	}
}

func TestStreakEndpointRequiresUser(t *testing.T) {
	server, _, _, _ := newAPIServer(t)
	resp, err := http.Get(server.URL + "/api/streak")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestStreakEndpointZeroValued(t *testing.T) {
	server, _, _, _ := newAPIServer(t)
	resp, err := http.Get(server.URL + "/api/streak?userId=new")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var streak domain.StreakState
	if err := json.NewDecoder(resp.Body).Decode(&streak); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if streak.UserID != "new" || streak.CurrentStreak != 0 {
		t.Fatalf("streak = %+v", streak)
	}
}

func TestMarkNotificationsReadEndpoint(t *testing.T) {
	server, _, notifications, _ := newAPIServer(t)
	ctx := context.Background()

	for _, id := range []string{"n1", "n2"} {
		if err := notifications.Append(ctx, domain.Notification{ID: id, UserID: "u1", Type: "case_completed"}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	body, _ := json.Marshal(markReadRequest{UserID: "u1", NotificationID: "n1"})
	resp, err := http.Post(server.URL+"/api/notifications/read", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}

	resp, err = http.Get(server.URL + "/api/notifications?userId=u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var listBody struct {
		Notifications []domain.Notification `json:"notifications"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listBody); err != nil {
		t.Fatalf("decode: %v", err)
	}
	readCount := 0
	for _, n := range listBody.Notifications {
		if n.Read {
			readCount++
		}
	}
	if readCount != 1 {
		t.Fatalf("read count = %d, want 1", readCount)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	server, _, _, _ := newAPIServer(t)

	profile := domain.Profile{UserID: "u1", DisplayName: "Dana", TrainingPhase: "clerkship"}
	body, _ := json.Marshal(profile)
	req, err := http.NewRequest(http.MethodPut, server.URL+"/api/profile", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}

	resp, err = http.Get(server.URL + "/api/profile?userId=u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var got domain.Profile
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.DisplayName != "Dana" || got.TrainingPhase != "clerkship" {
		t.Fatalf("profile = %+v", got)
	}
}

func TestProfileNotFoundStatus(t *testing.T) {
	server, _, _, _ := newAPIServer(t)
	resp, err := http.Get(server.URL + "/api/profile?userId=ghost")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
