package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"virtual-patient-service/internal/domain"
	"virtual-patient-service/internal/logger"
)

// BoardService serves the read-mostly surfaces around the simulator:
// leaderboard, streaks, notifications, and profiles. The leaderboard is the
// hot read, so concurrent requests for the same page are collapsed through
// singleflight and served from a short-lived snapshot.
type BoardService struct {
	log           *logger.Logger
	leaderboard   LeaderboardStore
	streaks       StreakStore
	notifications NotificationStore
	profiles      ProfileStore

	cacheTTL time.Duration
	clock    func() time.Time
	sf       singleflight.Group

	mu       sync.RWMutex
	snapshot map[int]boardSnapshot
}

type boardSnapshot struct {
	entries   []domain.LeaderboardEntry
	expiresAt time.Time
}

func NewBoardService(log *logger.Logger, leaderboard LeaderboardStore, streaks StreakStore, notifications NotificationStore, profiles ProfileStore, cacheTTL time.Duration) *BoardService {
	return &BoardService{
		log:           log,
		leaderboard:   leaderboard,
		streaks:       streaks,
		notifications: notifications,
		profiles:      profiles,
		cacheTTL:      cacheTTL,
		clock:         time.Now,
		snapshot:      make(map[int]boardSnapshot),
	}
}

// Top returns the highest running averages, newest snapshot within TTL.
func (s *BoardService) Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	now := s.clock()
	s.mu.RLock()
	if snap, ok := s.snapshot[limit]; ok && snap.expiresAt.After(now) {
		s.mu.RUnlock()
		return snap.entries, nil
	}
	s.mu.RUnlock()

	result, err, _ := s.sf.Do(fmt.Sprintf("top:%d", limit), func() (interface{}, error) {
		entries, err := s.leaderboard.Top(ctx, limit)
		if err != nil {
			return nil, err
		}
		if s.cacheTTL > 0 {
			s.mu.Lock()
			s.snapshot[limit] = boardSnapshot{entries: entries, expiresAt: s.clock().Add(s.cacheTTL)}
			s.mu.Unlock()
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.LeaderboardEntry), nil
}

// Streak returns the user's streak record, zero-valued if none exists yet.
func (s *BoardService) Streak(ctx context.Context, userID string) (domain.StreakState, error) {
	st, err := s.streaks.Get(ctx, userID)
	if err != nil {
		return domain.StreakState{}, err
	}
	if st == nil {
		return domain.StreakState{UserID: userID}, nil
	}
	return *st, nil
}

// Notifications lists the user's inbox, newest first.
func (s *BoardService) Notifications(ctx context.Context, userID string) ([]domain.Notification, error) {
	return s.notifications.ListForUser(ctx, userID)
}

func (s *BoardService) MarkRead(ctx context.Context, userID, notificationID string) error {
	return s.notifications.MarkRead(ctx, userID, notificationID)
}

func (s *BoardService) MarkAllRead(ctx context.Context, userID string) error {
	return s.notifications.MarkAllRead(ctx, userID)
}

func (s *BoardService) Profile(ctx context.Context, userID string) (domain.Profile, error) {
	return s.profiles.Get(ctx, userID)
}

func (s *BoardService) SaveProfile(ctx context.Context, p domain.Profile) error {
	return s.profiles.Put(ctx, p)
}
