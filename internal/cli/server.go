package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"virtual-patient-service/internal/app"
	"virtual-patient-service/internal/config"
	"virtual-patient-service/internal/infra/memory"
	pgstore "virtual-patient-service/internal/infra/postgres"
	redisstore "virtual-patient-service/internal/infra/redis"
	"virtual-patient-service/internal/llm"
	"virtual-patient-service/internal/logger"
	transport "virtual-patient-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the virtual patient server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Server.LogMode)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	transcriptTTL := config.TTLDuration(cfg.Redis.TTL, 24*time.Hour)
	caseTTL := config.TTLDuration(cfg.Case.TTL, 24*time.Hour)
	maxHints := cfg.MaxHintsPerDay()

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var cases app.CaseStore
	var transcripts app.TranscriptStore
	var budget app.HintBudget
	if redisClient != nil {
		cases = redisstore.NewCaseStore(redisClient, caseTTL)
		transcripts = redisstore.NewTranscriptStore(redisClient, transcriptTTL)
		budget = redisstore.NewHintBudget(redisClient, maxHints)
	} else {
		cases = memory.NewCaseStore(caseTTL)
		transcripts = memory.NewTranscriptStore()
		budget = memory.NewHintBudget(maxHints)
	}

	var stores app.CompletionStores
	var streaks app.StreakStore
	var leaderboard app.LeaderboardStore
	var notifications app.NotificationStore
	var profiles app.ProfileStore
	if pool != nil {
		streaks = pgstore.NewStreakStore(pool)
		leaderboard = pgstore.NewLeaderboard(pool)
		notifications = pgstore.NewNotificationStore(pool)
		profiles = pgstore.NewProfileStore(pool)
		stores = app.CompletionStores{
			Results:       pgstore.NewResultLog(pool),
			Streaks:       streaks,
			Progress:      pgstore.NewProgressStore(pool),
			Leaderboard:   leaderboard,
			Notifications: notifications,
			Profiles:      profiles,
		}
	} else {
		streaks = memory.NewStreakStore()
		leaderboard = memory.NewLeaderboard()
		notifications = memory.NewNotificationStore()
		profiles = memory.NewProfileStore()
		stores = app.CompletionStores{
			Results:       memory.NewResultLog(),
			Streaks:       streaks,
			Progress:      memory.NewProgressStore(),
			Leaderboard:   leaderboard,
			Notifications: notifications,
			Profiles:      profiles,
		}
	}

	client := llm.NewClient(log, llm.Options{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: config.TTLDuration(cfg.LLM.Timeout, 60*time.Second),
	})
	sim := llm.NewPatientSimulator(log, client)

	encounters := app.NewEncounterService(log, sim, cases, transcripts, budget, maxHints)
	completions := app.NewCompletionService(log, sim, cases, transcripts, budget, maxHints, stores)
	board := app.NewBoardService(log, leaderboard, streaks, notifications, profiles, 30*time.Second)

	mux := transport.NewRouter(
		transport.NewWSHandler(log, encounters, completions),
		transport.NewAPIHandler(log, board),
	)

	// No blanket read/write timeouts: encounter websockets stay open for the
	// length of a session.
	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting virtual patient service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server stopped", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
