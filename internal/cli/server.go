package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"trivia-league-service/internal/config"
	"trivia-league-service/internal/content"
	"trivia-league-service/internal/domain"
	"trivia-league-service/internal/gateway"
	"trivia-league-service/internal/infra/memory"
	pgcontent "trivia-league-service/internal/infra/postgres"
	redisinfra "trivia-league-service/internal/infra/redis"
	"trivia-league-service/internal/league"
	"trivia-league-service/internal/score"
	transport "trivia-league-service/internal/transport/http"
	"trivia-league-service/internal/worker"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia league server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
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

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader content.Loader = content.NewStaticLoader(sampleQuizzes())
	if pool != nil {
		loader = pgcontent.NewQuizLoader(pool)
	}

	quizTTL := config.Duration(cfg.Quiz.TTL, 10*time.Minute)
	var quizzes content.Repository
	var store gateway.Store
	var board interface {
		worker.Board
		transport.Board
	}
	if redisClient != nil {
		quizzes = redisinfra.NewQuizCache(redisClient, loader, quizTTL)
		store = redisinfra.NewStateStore(redisClient)
		board = redisinfra.NewLeaderboard(redisClient)
	} else {
		logger.Warn("no redis configured, falling back to in-process state")
		quizzes = memory.NewQuizCache(loader, quizTTL)
		store = memory.NewStateStore()
		board = memory.NewLeaderboard()
	}

	attempts := cfg.Sync.RetryAttempts
	if attempts <= 0 {
		attempts = gateway.DefaultTxAttempts
	}

	scores := score.NewReconciler(store, attempts, logger)
	var dirOpts []league.Option
	if cfg.League.CodeAttempts > 0 {
		dirOpts = append(dirOpts, league.WithCodeAttempts(cfg.League.CodeAttempts))
	}
	directory := league.NewDirectory(store, attempts, logger, dirOpts...)

	poller := content.NewPoller(loader, config.Duration(cfg.Quiz.PollInterval, time.Minute), nil, logger)
	go poller.Run(ctx)

	projector := worker.NewRankProjector(store, board, logger)
	go func() {
		if err := projector.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("rank projector stopped", "error", err)
		}
	}()

	playHandler := transport.NewPlayHandler(quizzes, scores, directory, logger)
	api := transport.NewAPI(directory, scores, board, poller, transport.HeaderIdentity, logger)

	mux := api.Router()
	mux.Get("/ws/play", playHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting trivia league service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes backs the offline mode when no postgres is configured.
func sampleQuizzes() map[string]domain.QuizDefinition {
	return map[string]domain.QuizDefinition{
		"kickoff-classics": {
			ID: "kickoff-classics",
			Questions: []domain.Question{
				{
					ID:            "q1",
					Text:          "Which country won the 2022 World Cup?",
					Options:       []string{"France", "Argentina", "Brazil", "Germany"},
					CorrectOption: "Argentina",
				},
				{
					ID:            "q2",
					Text:          "How many players does a team field at kickoff?",
					Options:       []string{"10", "11", "12"},
					CorrectOption: "11",
				},
			},
			TimeLimitSeconds:  60,
			PointsPerQuestion: 10,
			ExpiresAt:         time.Now().Add(24 * time.Hour).UnixMilli(),
		},
	}
}
