package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"micro-quiz-service/internal/domain"
	"micro-quiz-service/internal/engine"
	"micro-quiz-service/internal/metrics"
)

// SessionRepository abstracts where live attempts are kept (in-memory, Redis, etc).
// Save is called once, when an attempt starts.
type SessionRepository interface {
	Save(session *Session)
	Get(attemptID string) (*Session, bool)
	Delete(attemptID string)
}

// SnapshotPublisher is implemented by session repositories that mirror attempt
// state elsewhere. PublishSnapshot receives every state change of an attempt
// started by the service, including timer ticks and timeout completion, until
// the attempt is closed.
type SnapshotPublisher interface {
	PublishSnapshot(snap Snapshot)
}

// SnapshotLoader is implemented by session repositories that can report
// attempts not held by this process.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context, attemptID string) (Snapshot, error)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	// ListQuizzes returns startable quizzes ordered by ID; an empty category
	// matches every quiz.
	ListQuizzes(ctx context.Context, category string) ([]domain.Quiz, error)
}

// ResultRepository persists completion records.
type ResultRepository interface {
	SaveResult(ctx context.Context, result domain.QuizResult) error
	RecentResults(ctx context.Context, userID string, limit int) ([]domain.QuizResult, error)
}

const persistTimeout = 5 * time.Second

// AttemptService runs quiz attempts on behalf of connected users.
type AttemptService struct {
	sessions SessionRepository
	quizzes  QuizRepository
	results  ResultRepository

	logger    zerolog.Logger
	metrics   *metrics.Recorder
	now       func() time.Time
	newTicker TickerFunc
	interval  time.Duration
}

// Option customizes an AttemptService.
type Option func(*AttemptService)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *AttemptService) { s.logger = logger.With().Str("component", "attempt_service").Logger() }
}

func WithMetrics(recorder *metrics.Recorder) Option {
	return func(s *AttemptService) { s.metrics = recorder }
}

// WithClock is mainly for deterministic timestamps in tests.
func WithClock(now func() time.Time) Option {
	return func(s *AttemptService) { s.now = now }
}

// WithTicker replaces the wall-clock countdown driver.
func WithTicker(newTicker TickerFunc) Option {
	return func(s *AttemptService) { s.newTicker = newTicker }
}

// WithTickInterval sets how often one second of quiz time is consumed.
func WithTickInterval(d time.Duration) Option {
	return func(s *AttemptService) {
		if d > 0 {
			s.interval = d
		}
	}
}

func NewAttemptService(sessions SessionRepository, quizzes QuizRepository, results ResultRepository, opts ...Option) *AttemptService {
	s := &AttemptService{
		sessions:  sessions,
		quizzes:   quizzes,
		results:   results,
		logger:    zerolog.Nop(),
		now:       time.Now,
		newTicker: NewTimeTicker,
		interval:  time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the quiz and begins a timed attempt for userID.
func (s *AttemptService) Start(ctx context.Context, quizID, userID string) (Snapshot, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return Snapshot{}, err
	}
	attempt, err := engine.New(quiz)
	if err != nil {
		return Snapshot{}, fmt.Errorf("quiz %s: %w", quizID, err)
	}

	cfg := sessionConfig{
		now:        s.now,
		newTicker:  s.newTicker,
		interval:   s.interval,
		onComplete: s.record,
	}
	if publisher, ok := s.sessions.(SnapshotPublisher); ok {
		cfg.onChange = publisher.PublishSnapshot
	}
	session := newSession(uuid.NewString(), userID, attempt, cfg)
	s.sessions.Save(session)
	snap := session.start()
	s.metrics.AttemptStarted()

	s.logger.Info().
		Str("attempt_id", session.ID()).
		Str("quiz_id", quizID).
		Str("user_id", userID).
		Int("time_limit_seconds", quiz.TimeLimitSeconds).
		Msg("attempt started")
	return snap, nil
}

// Select records the pending answer for the current question.
func (s *AttemptService) Select(_ context.Context, attemptID string, optionIndex int) (Snapshot, error) {
	session, err := s.session(attemptID)
	if err != nil {
		return Snapshot{}, err
	}
	return session.selectAnswer(optionIndex)
}

// Advance commits the pending answer; on the last question this completes the
// attempt and persists its result.
func (s *AttemptService) Advance(ctx context.Context, attemptID string) (Snapshot, error) {
	session, err := s.session(attemptID)
	if err != nil {
		return Snapshot{}, err
	}
	return session.advance(ctx)
}

// Reset discards the attempt's progress for a retake. Results already
// persisted are kept.
func (s *AttemptService) Reset(_ context.Context, attemptID string) (Snapshot, error) {
	session, err := s.session(attemptID)
	if err != nil {
		return Snapshot{}, err
	}
	snap := session.reset()
	s.metrics.AttemptReset()
	s.logger.Debug().Str("attempt_id", attemptID).Int("attempt_number", snap.AttemptNumber).Msg("attempt reset")
	return snap, nil
}

// Snapshot reports an attempt's current state. Attempts running elsewhere are
// served from the last mirrored snapshot when the repository keeps one.
func (s *AttemptService) Snapshot(ctx context.Context, attemptID string) (Snapshot, error) {
	if session, ok := s.sessions.Get(attemptID); ok {
		return session.Snapshot(), nil
	}
	if loader, ok := s.sessions.(SnapshotLoader); ok {
		return loader.LoadSnapshot(ctx, attemptID)
	}
	return Snapshot{}, domain.ErrAttemptNotFound
}

// Subscribe returns a channel that receives a snapshot after every state change.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *AttemptService) Subscribe(_ context.Context, attemptID string) (<-chan Snapshot, func(), error) {
	session, err := s.session(attemptID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// Close stops the attempt's timer and forgets it.
func (s *AttemptService) Close(_ context.Context, attemptID string) {
	session, ok := s.sessions.Get(attemptID)
	if !ok {
		return
	}
	session.close()
	s.sessions.Delete(attemptID)
	s.metrics.AttemptClosed()
}

// Quiz returns the catalogue view of a quiz.
func (s *AttemptService) Quiz(ctx context.Context, quizID string) (domain.PublicQuiz, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.PublicQuiz{}, err
	}
	return quiz.Public(), nil
}

// Quizzes lists the catalogue, optionally narrowed to one category.
func (s *AttemptService) Quizzes(ctx context.Context, category string) ([]domain.QuizSummary, error) {
	quizzes, err := s.quizzes.ListQuizzes(ctx, category)
	if err != nil {
		return nil, err
	}
	summaries := make([]domain.QuizSummary, 0, len(quizzes))
	for _, quiz := range quizzes {
		summaries = append(summaries, quiz.Summary())
	}
	return summaries, nil
}

// RecentResults lists a user's latest completion records, newest first.
func (s *AttemptService) RecentResults(ctx context.Context, userID string, limit int) ([]domain.QuizResult, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.results.RecentResults(ctx, userID, limit)
}

func (s *AttemptService) session(attemptID string) (*Session, error) {
	session, ok := s.sessions.Get(attemptID)
	if !ok {
		return nil, domain.ErrAttemptNotFound
	}
	return session, nil
}

// record persists a completion record. It runs outside the session lock and
// may be called from the timer goroutine.
func (s *AttemptService) record(ctx context.Context, result domain.QuizResult) {
	s.metrics.AttemptCompleted(string(result.Reason), result.Percentage, result.Passed)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	logger := s.logger.With().
		Str("attempt_id", result.AttemptID).
		Str("quiz_id", result.QuizID).
		Str("user_id", result.UserID).
		Logger()

	if err := s.results.SaveResult(ctx, result); err != nil {
		logger.Error().Err(err).Msg("persist quiz result")
		return
	}
	logger.Info().
		Str("reason", string(result.Reason)).
		Int("correct", result.CorrectAnswers).
		Int("percentage", result.Percentage).
		Bool("passed", result.Passed).
		Int("attempt_number", result.AttemptNumber).
		Msg("attempt completed")
}
