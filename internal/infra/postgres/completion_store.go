package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"virtual-patient-service/internal/domain"
)

// ResultLog appends completed case results to the case_results table.
type ResultLog struct {
	pool *pgxpool.Pool
}

func NewResultLog(pool *pgxpool.Pool) *ResultLog {
	return &ResultLog{pool: pool}
}

func (l *ResultLog) Append(ctx context.Context, r domain.CaseResult) error {
	breakdown, err := json.Marshal(r.Breakdown)
	if err != nil {
		return fmt.Errorf("marshal breakdown: %w", err)
	}
	_, err = l.pool.Exec(ctx, `
		INSERT INTO case_results (
			user_id, case_id, case_title, diagnosis_correct,
			mcq_correct, mcq_total,
			history_score, history_justification,
			exam_score, exam_justification,
			hints_used, final_score, breakdown, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		r.UserID, r.CaseID, r.CaseTitle, r.DiagnosisCorrect,
		r.MCQCorrectCount, r.MCQTotal,
		r.EPA.History.Score, r.EPA.History.Justification,
		r.EPA.PhysicalExam.Score, r.EPA.PhysicalExam.Justification,
		r.HintsUsed, r.FinalScore, breakdown, r.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert case result: %w", err)
	}
	return nil
}

// StreakStore holds one streak row per user.
type StreakStore struct {
	pool *pgxpool.Pool
}

func NewStreakStore(pool *pgxpool.Pool) *StreakStore {
	return &StreakStore{pool: pool}
}

func (s *StreakStore) Get(ctx context.Context, userID string) (*domain.StreakState, error) {
	st := domain.StreakState{UserID: userID}
	err := s.pool.QueryRow(ctx,
		`SELECT current_streak, max_streak, last_active_day FROM streaks WHERE user_id=$1`,
		userID,
	).Scan(&st.CurrentStreak, &st.MaxStreak, &st.LastActiveDay)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load streak: %w", err)
	}
	return &st, nil
}

func (s *StreakStore) Put(ctx context.Context, st domain.StreakState) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO streaks (user_id, current_streak, max_streak, last_active_day)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (user_id) DO UPDATE SET
			current_streak=EXCLUDED.current_streak,
			max_streak=EXCLUDED.max_streak,
			last_active_day=EXCLUDED.last_active_day`,
		st.UserID, st.CurrentStreak, st.MaxStreak, st.LastActiveDay,
	)
	if err != nil {
		return fmt.Errorf("upsert streak: %w", err)
	}
	return nil
}

// ProgressStore holds lifetime completion counters per user.
type ProgressStore struct {
	pool *pgxpool.Pool
}

func NewProgressStore(pool *pgxpool.Pool) *ProgressStore {
	return &ProgressStore{pool: pool}
}

func (s *ProgressStore) Get(ctx context.Context, userID string) (domain.Progress, error) {
	p := domain.Progress{UserID: userID}
	err := s.pool.QueryRow(ctx,
		`SELECT completed, average_score FROM progress WHERE user_id=$1`,
		userID,
	).Scan(&p.Completed, &p.AverageScore)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Progress{UserID: userID}, nil
	}
	if err != nil {
		return domain.Progress{}, fmt.Errorf("load progress: %w", err)
	}
	return p, nil
}

func (s *ProgressStore) Put(ctx context.Context, p domain.Progress) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO progress (user_id, completed, average_score)
		VALUES ($1,$2,$3)
		ON CONFLICT (user_id) DO UPDATE SET
			completed=EXCLUDED.completed,
			average_score=EXCLUDED.average_score`,
		p.UserID, p.Completed, p.AverageScore,
	)
	if err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}
	return nil
}

// Leaderboard holds one row per user with the running average score.
type Leaderboard struct {
	pool *pgxpool.Pool
}

func NewLeaderboard(pool *pgxpool.Pool) *Leaderboard {
	return &Leaderboard{pool: pool}
}

func (l *Leaderboard) Upsert(ctx context.Context, e domain.LeaderboardEntry) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO leaderboard (user_id, display_name, average_score, completed)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (user_id) DO UPDATE SET
			display_name=EXCLUDED.display_name,
			average_score=EXCLUDED.average_score,
			completed=EXCLUDED.completed`,
		e.UserID, e.DisplayName, e.AverageScore, e.Completed,
	)
	if err != nil {
		return fmt.Errorf("upsert leaderboard entry: %w", err)
	}
	return nil
}

func (l *Leaderboard) Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT user_id, display_name, average_score, completed
		FROM leaderboard
		ORDER BY average_score DESC, display_name ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.LeaderboardEntry, 0, limit)
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.DisplayName, &e.AverageScore, &e.Completed); err != nil {
			return nil, fmt.Errorf("scan leaderboard entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// NotificationStore is the append-only notification inbox.
type NotificationStore struct {
	pool *pgxpool.Pool
}

func NewNotificationStore(pool *pgxpool.Pool) *NotificationStore {
	return &NotificationStore{pool: pool}
}

func (s *NotificationStore) Append(ctx context.Context, n domain.Notification) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, read, link, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		n.ID, n.UserID, n.Type, n.Title, n.Message, n.Read, n.Link, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *NotificationStore) ListForUser(ctx context.Context, userID string) ([]domain.Notification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, type, title, message, read, link, created_at
		FROM notifications
		WHERE user_id=$1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var list []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Read, &n.Link, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		list = append(list, n)
	}
	return list, rows.Err()
}

func (s *NotificationStore) MarkRead(ctx context.Context, userID, notificationID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE notifications SET read=TRUE WHERE user_id=$1 AND id=$2`,
		userID, notificationID,
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

func (s *NotificationStore) MarkAllRead(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE notifications SET read=TRUE WHERE user_id=$1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("mark notifications read: %w", err)
	}
	return nil
}

// ProfileStore holds user records, including the training-phase metadata.
type ProfileStore struct {
	pool *pgxpool.Pool
}

func NewProfileStore(pool *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

func (s *ProfileStore) Get(ctx context.Context, userID string) (domain.Profile, error) {
	p := domain.Profile{UserID: userID}
	err := s.pool.QueryRow(ctx,
		`SELECT display_name, training_phase FROM users WHERE user_id=$1`,
		userID,
	).Scan(&p.DisplayName, &p.TrainingPhase)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	if err != nil {
		return domain.Profile{}, fmt.Errorf("load profile: %w", err)
	}
	return p, nil
}

func (s *ProfileStore) Put(ctx context.Context, p domain.Profile) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (user_id, display_name, training_phase)
		VALUES ($1,$2,$3)
		ON CONFLICT (user_id) DO UPDATE SET
			display_name=EXCLUDED.display_name,
			training_phase=EXCLUDED.training_phase`,
		p.UserID, p.DisplayName, p.TrainingPhase,
	)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}
