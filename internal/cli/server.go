package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"micro-quiz-service/internal/app"
	"micro-quiz-service/internal/config"
	"micro-quiz-service/internal/domain"
	"micro-quiz-service/internal/infra/memory"
	"micro-quiz-service/internal/infra/postgres"
	infraredis "micro-quiz-service/internal/infra/redis"
	"micro-quiz-service/internal/logging"
	"micro-quiz-service/internal/metrics"
	transport "micro-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			portFlag := ""
			if cmd.Flags().Changed("port") {
				portFlag = *port
			}
			return runServer(cmd.Context(), *configPath, portFlag)
		},
	}
}

func newLogger(cfg config.Config) zerolog.Logger {
	return logging.New(appName, cfg.Log.Env, cfg.Log.Level)
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	ctx = logging.IntoContext(ctx, logger)

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

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable, continuing with degraded cache")
		}
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.QuizLoader
	switch {
	case pool != nil:
		loader = postgres.NewQuizLoader(pool)
	case cfg.Quiz.SeedFile != "":
		quizzes, err := memory.LoadQuizFile(cfg.Quiz.SeedFile)
		if err != nil {
			return err
		}
		loader = memory.NewStaticQuizLoader(quizzes)
	default:
		loader = memory.NewStaticQuizLoader(sampleQuizzes())
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = infraredis.NewQuizRepository(redisClient, loader, quizTTL, logger)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var store app.SessionRepository
	if redisClient != nil {
		store = infraredis.NewSessionStore(redisClient, redisTTL, logger)
	} else {
		store = memory.NewSessionStore()
	}

	var results app.ResultRepository = memory.NewResultStore()
	if pool != nil {
		results = postgres.NewResultRepository(pool)
	}
	if redisClient != nil {
		results = infraredis.NewResultFeed(redisClient, results, cfg.Attempt.RecentResults, logger)
	}

	service := app.NewAttemptService(store, quizRepo, results,
		app.WithLogger(logger),
		app.WithMetrics(metrics.NewRecorder(prometheus.DefaultRegisterer)),
		app.WithTickInterval(config.TTLDuration(cfg.Attempt.TickInterval, time.Second)),
	)
	wsHandler := transport.NewWSHandler(service, logger)
	restHandler := transport.NewRESTHandler(service, logger, cfg.Attempt.RecentResults)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.Handle("/metrics", promhttp.Handler())
	restHandler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info().Str("port", finalPort).Msg("starting quiz service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info().Msg("shutting down server")
	case <-ctx.Done():
		logger.Info().Msg("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes is the built-in catalogue used when neither Postgres nor a
// seed file is configured.
func sampleQuizzes() map[string]domain.Quiz {
	passing := 60
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:               "quiz-1",
			Title:            "Warm-up arithmetic",
			Description:      "Three quick sums against the clock.",
			Category:         "math",
			Difficulty:       "easy",
			TimeLimitSeconds: 60,
			Questions: []domain.Question{
				{Prompt: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectOptionIndex: 1, Explanation: "Two pairs make four."},
				{Prompt: "What is 7 * 6?", Options: []string{"42", "36", "48"}, CorrectOptionIndex: 0},
				{Prompt: "What is 81 / 9?", Options: []string{"8", "7", "9"}, CorrectOptionIndex: 2, Explanation: "9 * 9 = 81."},
			},
		},
		"go-basics": {
			ID:                "go-basics",
			Title:             "Go basics",
			Description:       "Language fundamentals.",
			Category:          "programming",
			Difficulty:        "medium",
			TimeLimitSeconds:  90,
			PassingPercentage: &passing,
			Questions: []domain.Question{
				{Prompt: "Which keyword starts a goroutine?", Options: []string{"async", "go", "spawn"}, CorrectOptionIndex: 1, Points: 2},
				{Prompt: "What is the zero value of a map?", Options: []string{"an empty map", "nil"}, CorrectOptionIndex: 1, Explanation: "Writing to a nil map panics."},
			},
		},
	}
}
