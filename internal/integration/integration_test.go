package integration

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"virtual-patient-service/internal/app"
	"virtual-patient-service/internal/domain"
	pgstore "virtual-patient-service/internal/infra/postgres"
	pgmigrations "virtual-patient-service/internal/infra/postgres/migrations"
	infraredis "virtual-patient-service/internal/infra/redis"
	"virtual-patient-service/internal/logger"
)

type scriptedSim struct{}

func (scriptedSim) GenerateCase(context.Context, domain.CaseFilters) (domain.CaseDocument, error) {
	return sampleCase(), nil
}

func (scriptedSim) RoleplayTurn(context.Context, domain.CaseDocument, []domain.ChatTurn, string) (string, error) {
	return "The pain is crushing, right behind my sternum.", nil
}

func (scriptedSim) GenerateHint(context.Context, domain.CaseDocument, []domain.ChatTurn) (string, error) {
	return "What risk factors have you explored so far?", nil
}

func (scriptedSim) EvaluateEPAs(context.Context, domain.CaseDocument, []domain.ChatTurn) domain.EPAEvaluation {
	return domain.EPAEvaluation{
		History:      domain.EPAScore{Score: 8, Justification: "covered onset and character"},
		PhysicalExam: domain.EPAScore{Score: 6, Justification: "no cardiac auscultation"},
	}
}

func (scriptedSim) GenerateSOAPNote(context.Context, domain.CaseDocument) (string, error) {
	return "S: chest pain.", nil
}

func sampleCase() domain.CaseDocument {
	return domain.CaseDocument{
		ID:             "case-int",
		Title:          "Crushing chest pain",
		Specialty:      "cardiology",
		ChiefComplaint: "Chest pain",
		Diagnoses: []domain.Diagnosis{
			{ID: "d1", Name: "Acute coronary syndrome", Correct: true},
			{ID: "d2", Name: "Panic attack"},
		},
		Questions: []domain.Question{
			{
				ID:     "q1",
				Prompt: "First-line investigation?",
				Options: []domain.Option{
					{ID: "o1", Text: "ECG", Correct: true},
					{ID: "o2", Text: "Chest CT"},
				},
			},
			{
				ID:     "q2",
				Prompt: "Initial management?",
				Options: []domain.Option{
					{ID: "o1", Text: "Aspirin", Correct: true},
					{ID: "o2", Text: "Discharge"},
				},
			},
		},
	}
}

func TestFinishCaseEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	applyMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	log := logger.NewNop()
	maxHints := 10
	cases := infraredis.NewCaseStore(redisClient, time.Hour)
	transcripts := infraredis.NewTranscriptStore(redisClient, time.Hour)
	budget := infraredis.NewHintBudget(redisClient, maxHints)

	profiles := pgstore.NewProfileStore(pool)
	streaks := pgstore.NewStreakStore(pool)
	leaderboard := pgstore.NewLeaderboard(pool)
	notifications := pgstore.NewNotificationStore(pool)

	encounters := app.NewEncounterService(log, scriptedSim{}, cases, transcripts, budget, maxHints)
	completions := app.NewCompletionService(log, scriptedSim{}, cases, transcripts, budget, maxHints, app.CompletionStores{
		Results:       pgstore.NewResultLog(pool),
		Streaks:       streaks,
		Progress:      pgstore.NewProgressStore(pool),
		Leaderboard:   leaderboard,
		Notifications: notifications,
		Profiles:      profiles,
	})
	board := app.NewBoardService(log, leaderboard, streaks, notifications, profiles, 0)

	if err := profiles.Put(ctx, domain.Profile{UserID: "u1", DisplayName: "Dana", TrainingPhase: "clerkship"}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	doc, err := encounters.StartCase(ctx, domain.CaseFilters{Specialties: []string{"cardiology"}})
	if err != nil {
		t.Fatalf("start case: %v", err)
	}

	if _, err := encounters.PatientReply(ctx, "u1", doc.ID, "Tell me about the pain."); err != nil {
		t.Fatalf("patient reply: %v", err)
	}
	if _, _, err := encounters.RequestHint(ctx, "u1", doc.ID); err != nil {
		t.Fatalf("hint: %v", err)
	}

	// Correct diagnosis, both MCQs right, one hint:
	// 4.0 + 2.0 + 2.5*0.8 + 1.5*0.6 - 0.5 = 8.4
	result, err := completions.FinishCase(ctx, "u1", doc.ID, "d1", map[string]string{"q1": "o1", "q2": "o1"})
	if err != nil {
		t.Fatalf("finish case: %v", err)
	}
	if math.Abs(result.FinalScore-8.4) > 1e-9 {
		t.Fatalf("final score = %v, want 8.4", result.FinalScore)
	}

	streak, err := board.Streak(ctx, "u1")
	if err != nil || streak.CurrentStreak != 1 {
		t.Fatalf("streak = %+v err=%v", streak, err)
	}

	top, err := board.Top(ctx, 10)
	if err != nil || len(top) != 1 {
		t.Fatalf("leaderboard = %+v err=%v", top, err)
	}
	if top[0].DisplayName != "Dana" || math.Abs(top[0].AverageScore-8.4) > 1e-9 {
		t.Fatalf("leaderboard entry = %+v", top[0])
	}

	inbox, err := board.Notifications(ctx, "u1")
	if err != nil || len(inbox) != 1 || inbox[0].Type != "case_completed" {
		t.Fatalf("inbox = %+v err=%v", inbox, err)
	}

	turns, err := transcripts.Get(ctx, "u1", doc.ID)
	if err != nil || len(turns) != 0 {
		t.Fatalf("transcript after completion = %+v err=%v", turns, err)
	}
}

func applyMigrations(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "vps", "POSTGRES_PASSWORD": "vpspass", "POSTGRES_DB": "vpsdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://vps:vpspass@%s:%s/vpsdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
