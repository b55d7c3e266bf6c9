package memory

import (
	"context"
	"sort"
	"sync"

	"virtual-patient-service/internal/domain"
)

// ResultLog is the append-only case-completion log.
type ResultLog struct {
	mu      sync.RWMutex
	results []domain.CaseResult
}

func NewResultLog() *ResultLog { return &ResultLog{} }

func (s *ResultLog) Append(_ context.Context, r domain.CaseResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
	return nil
}

// Results returns a copy of the log; test helper.
func (s *ResultLog) Results() []domain.CaseResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.CaseResult, len(s.results))
	copy(out, s.results)
	return out
}

// StreakStore holds one streak record per user.
type StreakStore struct {
	mu      sync.RWMutex
	streaks map[string]domain.StreakState
}

func NewStreakStore() *StreakStore {
	return &StreakStore{streaks: make(map[string]domain.StreakState)}
}

func (s *StreakStore) Get(_ context.Context, userID string) (*domain.StreakState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.streaks[userID]; ok {
		copied := st
		return &copied, nil
	}
	return nil, nil
}

func (s *StreakStore) Put(_ context.Context, st domain.StreakState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streaks[st.UserID] = st
	return nil
}

// ProgressStore holds lifetime completion counters per user.
type ProgressStore struct {
	mu       sync.RWMutex
	progress map[string]domain.Progress
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{progress: make(map[string]domain.Progress)}
}

func (s *ProgressStore) Get(_ context.Context, userID string) (domain.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.progress[userID]
	p.UserID = userID
	return p, nil
}

func (s *ProgressStore) Put(_ context.Context, p domain.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress[p.UserID] = p
	return nil
}

// Leaderboard holds one running-average row per user.
type Leaderboard struct {
	mu      sync.RWMutex
	entries map[string]domain.LeaderboardEntry
}

func NewLeaderboard() *Leaderboard {
	return &Leaderboard{entries: make(map[string]domain.LeaderboardEntry)}
}

func (s *Leaderboard) Upsert(_ context.Context, e domain.LeaderboardEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.UserID] = e
	return nil
}

func (s *Leaderboard) Top(_ context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]domain.LeaderboardEntry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].AverageScore != entries[j].AverageScore {
			return entries[i].AverageScore > entries[j].AverageScore
		}
		return entries[i].DisplayName < entries[j].DisplayName
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// NotificationStore is the append-only inbox.
type NotificationStore struct {
	mu            sync.RWMutex
	notifications map[string][]domain.Notification
}

func NewNotificationStore() *NotificationStore {
	return &NotificationStore{notifications: make(map[string][]domain.Notification)}
}

func (s *NotificationStore) Append(_ context.Context, n domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[n.UserID] = append(s.notifications[n.UserID], n)
	return nil
}

func (s *NotificationStore) ListForUser(_ context.Context, userID string) ([]domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.notifications[userID]
	out := make([]domain.Notification, len(stored))
	copy(out, stored)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *NotificationStore) MarkRead(_ context.Context, userID, notificationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.notifications[userID] {
		if n.ID == notificationID {
			s.notifications[userID][i].Read = true
			break
		}
	}
	return nil
}

func (s *NotificationStore) MarkAllRead(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications[userID] {
		s.notifications[userID][i].Read = true
	}
	return nil
}

// ProfileStore holds user records.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]domain.Profile
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{profiles: make(map[string]domain.Profile)}
}

func (s *ProfileStore) Get(_ context.Context, userID string) (domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	return p, nil
}

func (s *ProfileStore) Put(_ context.Context, p domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UserID] = p
	return nil
}
