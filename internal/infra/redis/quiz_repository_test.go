package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"micro-quiz-service/internal/domain"
	"micro-quiz-service/internal/infra/memory"
)

func TestQuizRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	loader := &countingLoader{
		QuizLoader: memory.NewStaticQuizLoader(map[string]domain.Quiz{
			"quiz-1": sampleQuiz(),
		}),
	}
	repo := NewQuizRepository(client, loader, time.Minute, zerolog.Nop())

	_, err = repo.GetQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("quiz:quiz-1:content") {
		t.Fatalf("expected cached quiz content")
	}
	if ttl := mr.TTL("quiz:quiz-1:content"); ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	// Second call should hit cache, loader not incremented.
	cached, err := repo.GetQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get cached quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}

	// The cached copy must keep everything the engine needs.
	if err := cached.Validate(); err != nil {
		t.Fatalf("cached quiz invalid: %v", err)
	}
	if cached.Questions[0].Options[1] != "4" || cached.Questions[0].CorrectOptionIndex != 1 {
		t.Fatalf("cached question lost content: %+v", cached.Questions[0])
	}
	if cached.PassingThreshold() != 80 {
		t.Fatalf("expected passing threshold 80, got %d", cached.PassingThreshold())
	}
}

func TestQuizRepositoryInvalidate(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{
		QuizLoader: memory.NewStaticQuizLoader(map[string]domain.Quiz{"quiz-1": sampleQuiz()}),
	}
	repo := NewQuizRepository(newClient(mr), loader, time.Minute, zerolog.Nop())
	ctx := context.Background()

	if _, err := repo.GetQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if err := repo.Invalidate(ctx, "quiz-1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := repo.GetQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("reload quiz: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, loader calls=%d", loader.calls)
	}
}

func TestQuizRepositoryNotFoundAndCorruptCache(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{
		QuizLoader: memory.NewStaticQuizLoader(map[string]domain.Quiz{"quiz-1": sampleQuiz()}),
	}
	repo := NewQuizRepository(newClient(mr), loader, time.Minute, zerolog.Nop())
	ctx := context.Background()

	if _, err := repo.GetQuiz(ctx, "missing"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}

	if err := mr.Set("quiz:quiz-1:content", "{not json"); err != nil {
		t.Fatalf("seed corrupt entry: %v", err)
	}
	quiz, err := repo.GetQuiz(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("expected loader fallback, got %v", err)
	}
	if quiz.Title != "Arithmetic" {
		t.Fatalf("unexpected quiz %+v", quiz)
	}
}

func TestQuizRepositoryFallsBackWhenRedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	client := newClient(mr)
	mr.Close()

	loader := &countingLoader{
		QuizLoader: memory.NewStaticQuizLoader(map[string]domain.Quiz{"quiz-1": sampleQuiz()}),
	}
	repo := NewQuizRepository(client, loader, time.Minute, zerolog.Nop())

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("expected loader result with redis down, got %v", err)
	}
}

func TestQuizRepositoryListsThroughLoader(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	other := sampleQuiz()
	other.ID, other.Category = "quiz-2", "science"
	math := sampleQuiz()
	math.Category = "math"
	loader := memory.NewStaticQuizLoader(map[string]domain.Quiz{"quiz-1": math, "quiz-2": other})
	repo := NewQuizRepository(newClient(mr), loader, time.Minute, zerolog.Nop())

	quizzes, err := repo.ListQuizzes(context.Background(), "science")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(quizzes) != 1 || quizzes[0].ID != "quiz-2" {
		t.Fatalf("unexpected listing %+v", quizzes)
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("listing must not populate the content cache, keys %v", mr.Keys())
	}
}

type countingLoader struct {
	memory.QuizLoader
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	l.calls++
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func sampleQuiz() domain.Quiz {
	passing := 80
	return domain.Quiz{
		ID:                "quiz-1",
		Title:             "Arithmetic",
		TimeLimitSeconds:  30,
		PassingPercentage: &passing,
		Questions: []domain.Question{
			{
				Prompt:             "What is 2 + 2?",
				Options:            []string{"3", "4"},
				CorrectOptionIndex: 1,
				Explanation:        "Two pairs.",
				Points:             2,
			},
			{
				Prompt:             "What is 3 * 3?",
				Options:            []string{"6", "9", "12"},
				CorrectOptionIndex: 1,
			},
		},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
