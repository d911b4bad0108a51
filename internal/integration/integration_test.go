package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"micro-quiz-service/internal/app"
	"micro-quiz-service/internal/domain"
	"micro-quiz-service/internal/infra/postgres"
	infraredis "micro-quiz-service/internal/infra/redis"
	pgmigrations "micro-quiz-service/internal/infra/postgres/migrations"
)

func TestAttemptEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuiz(t, ctx, pgURL, sampleQuiz())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	loader := postgres.NewQuizLoader(pool)
	for category, want := range map[string]int{"": 1, "math": 1, "science": 0} {
		listed, err := loader.ListQuizzes(ctx, category)
		if err != nil {
			t.Fatalf("list %q: %v", category, err)
		}
		if len(listed) != want {
			t.Fatalf("category %q: expected %d quizzes, got %d", category, want, len(listed))
		}
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	logger := zerolog.Nop()
	quizRepo := infraredis.NewQuizRepository(redisClient, loader, 5*time.Minute, logger)
	sessionStore := infraredis.NewSessionStore(redisClient, 5*time.Minute, logger)
	durable := postgres.NewResultRepository(pool)
	results := infraredis.NewResultFeed(redisClient, durable, 10, logger)
	// the countdown is not under test here
	service := app.NewAttemptService(sessionStore, quizRepo, results, app.WithTickInterval(time.Hour))

	if _, err := service.Start(ctx, "missing", "u1"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}

	snap, err := service.Start(ctx, "quiz-1", "u1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := sessionStore.LoadSnapshot(ctx, snap.AttemptID); err != nil {
		t.Fatalf("expected attempt snapshot in redis: %v", err)
	}

	for _, option := range []int{1, 0} {
		if _, err := service.Select(ctx, snap.AttemptID, option); err != nil {
			t.Fatalf("select: %v", err)
		}
		if snap, err = service.Advance(ctx, snap.AttemptID); err != nil {
			t.Fatalf("advance: %v", err)
		}
	}
	if snap.FinalScore == nil || snap.FinalScore.CorrectCount != 1 || snap.FinalScore.Percentage != 50 || snap.FinalScore.Passed {
		t.Fatalf("unexpected final score %+v", snap.FinalScore)
	}
	mirrored, err := sessionStore.LoadSnapshot(ctx, snap.AttemptID)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if mirrored.Phase != snap.Phase || mirrored.FinalScore == nil {
		t.Fatalf("redis snapshot lags live attempt: %+v", mirrored)
	}

	stored, err := durable.RecentResults(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("recent results: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected one persisted result, got %d", len(stored))
	}
	got := stored[0]
	if got.AttemptID != snap.AttemptID || got.Reason != domain.CompletionAnswered || got.AttemptNumber != 1 {
		t.Fatalf("unexpected result %+v", got)
	}
	if len(got.Answers) != 2 || !got.Answers[0].Correct || got.Answers[1].Correct {
		t.Fatalf("unexpected answers %+v", got.Answers)
	}

	feed, err := results.RecentResults(ctx, "u1", 1)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(feed) != 1 || feed[0].ID != got.ID {
		t.Fatalf("expected feed to mirror durable store, got %+v", feed)
	}

	service.Close(ctx, snap.AttemptID)
	if _, err := sessionStore.LoadSnapshot(ctx, snap.AttemptID); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected snapshot removed after close, got %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
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
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
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

func seedQuiz(t *testing.T, ctx context.Context, dsn string, quiz domain.Quiz) {
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

	if _, err := postgres.NewSeeder(db).Seed(ctx, map[string]domain.Quiz{quiz.ID: quiz}); err != nil {
		t.Fatalf("seed quiz: %v", err)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:               "quiz-1",
		Title:            "Arithmetic",
		Category:         "math",
		TimeLimitSeconds: 60,
		Questions: []domain.Question{
			{Prompt: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectOptionIndex: 1},
			{Prompt: "What is 10 / 2?", Options: []string{"2", "5"}, CorrectOptionIndex: 1},
		},
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
