package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"micro-quiz-service/internal/domain"
	"micro-quiz-service/internal/engine"
)

// QuestionView is the question currently on screen. The answer key is only
// included once a selection is locked in.
type QuestionView struct {
	Index              int      `json:"index"`
	Prompt             string   `json:"prompt"`
	Options            []string `json:"options"`
	Points             int      `json:"points"`
	CorrectOptionIndex *int     `json:"correctOptionIndex,omitempty"`
	Explanation        string   `json:"explanation,omitempty"`
}

// Snapshot is the render-ready view of an attempt.
type Snapshot struct {
	AttemptID            string                  `json:"attemptId"`
	QuizID               string                  `json:"quizId"`
	UserID               string                  `json:"userId"`
	Title                string                  `json:"title"`
	AttemptNumber        int                     `json:"attemptNumber"`
	Version              uint64                  `json:"version"`
	Phase                engine.Phase            `json:"phase"`
	State                engine.State            `json:"state"`
	CurrentQuestionIndex int                     `json:"currentQuestionIndex"`
	TotalQuestions       int                     `json:"totalQuestions"`
	Question             *QuestionView           `json:"question,omitempty"`
	SelectedOptionIndex  *int                    `json:"selectedOptionIndex,omitempty"`
	RemainingSeconds     int                     `json:"remainingSeconds"`
	Progress             float64                 `json:"progress"`
	FinalScore           *engine.Score           `json:"finalScore,omitempty"`
	Reason               domain.CompletionReason `json:"reason,omitempty"`
	Answers              []engine.Answer         `json:"answers,omitempty"`
	UpdatedAt            time.Time               `json:"updatedAt"`
}

type completionHook func(ctx context.Context, result domain.QuizResult)

type sessionConfig struct {
	now        func() time.Time
	newTicker  TickerFunc
	interval   time.Duration
	onComplete completionHook
	// onChange receives every broadcast snapshot, outside mu and in version order.
	onChange func(Snapshot)
}

// Session is one user's live attempt plus the timer that drives it.
// Every engine call happens under mu, so ticks and user actions are applied in
// arrival order.
type Session struct {
	id     string
	userID string
	cfg    sessionConfig

	mu          sync.Mutex
	attempt     *engine.Attempt
	number      int
	startedAt   time.Time
	recorded    bool
	stop        chan struct{}
	closed      bool
	version     uint64
	subscribers map[chan Snapshot]struct{}

	publishMu sync.Mutex
	published uint64
	muted     bool
}

// NewSession wraps a fresh attempt on quiz. The countdown does not run until the
// owning service starts it.
func NewSession(id, userID string, quiz domain.Quiz) (*Session, error) {
	attempt, err := engine.New(quiz)
	if err != nil {
		return nil, err
	}
	return newSession(id, userID, attempt, sessionConfig{
		now:       time.Now,
		newTicker: NewTimeTicker,
		interval:  time.Second,
	}), nil
}

func newSession(id, userID string, attempt *engine.Attempt, cfg sessionConfig) *Session {
	return &Session{
		id:          id,
		userID:      userID,
		cfg:         cfg,
		attempt:     attempt,
		number:      1,
		startedAt:   cfg.now(),
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) UserID() string { return s.userID }

func (s *Session) QuizID() string { return s.attempt.Quiz().ID }

// Snapshot returns the current view of the attempt.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) start() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startTimerLocked()
	return s.snapshotLocked()
}

func (s *Session) selectAnswer(option int) (Snapshot, error) {
	s.mu.Lock()
	if _, err := s.attempt.SelectAnswer(option); err != nil {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, err
	}
	snap := s.broadcastLocked()
	s.mu.Unlock()

	s.publish(snap)
	return snap, nil
}

func (s *Session) advance(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	if _, err := s.attempt.Advance(); err != nil {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, err
	}
	result, finished := s.finishLocked()
	snap := s.broadcastLocked()
	s.mu.Unlock()

	s.publish(snap)
	if finished {
		s.complete(ctx, result)
	}
	return snap, nil
}

// reset starts the next attempt number from scratch and restarts the countdown.
func (s *Session) reset() Snapshot {
	s.mu.Lock()
	s.stopTimerLocked()
	s.attempt.Reset()
	s.number++
	s.recorded = false
	s.startedAt = s.cfg.now()
	if !s.closed {
		s.startTimerLocked()
	}
	snap := s.broadcastLocked()
	s.mu.Unlock()

	s.publish(snap)
	return snap
}

// close stops the countdown and releases subscribers. Once it returns no
// further snapshots reach onChange.
func (s *Session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopTimerLocked()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
	s.mu.Unlock()

	// waits out a publish already in flight
	s.publishMu.Lock()
	s.muted = true
	s.publishMu.Unlock()
}

func (s *Session) startTimerLocked() {
	stop := make(chan struct{})
	s.stop = stop
	go s.runTimer(s.cfg.newTicker(s.cfg.interval), stop)
}

func (s *Session) stopTimerLocked() {
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}

func (s *Session) runTimer(ticker Ticker, stop <-chan struct{}) {
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			if !s.tick(stop) {
				return
			}
		}
	}
}

// tick reports whether the timer should keep running.
func (s *Session) tick(stop <-chan struct{}) bool {
	s.mu.Lock()
	select {
	case <-stop:
		// superseded by reset, close or completion
		s.mu.Unlock()
		return false
	default:
	}
	state := s.attempt.Tick()
	result, finished := s.finishLocked()
	snap := s.broadcastLocked()
	s.mu.Unlock()

	s.publish(snap)
	if finished {
		s.complete(context.Background(), result)
	}
	return state != engine.StateCompleted
}

// publish hands snap to onChange unless a newer snapshot already went out.
// Concurrent callers race between unlocking mu and getting here.
func (s *Session) publish(snap Snapshot) {
	if s.cfg.onChange == nil {
		return
	}
	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	if s.muted || snap.Version <= s.published {
		return
	}
	s.published = snap.Version
	s.cfg.onChange(snap)
}

func (s *Session) complete(ctx context.Context, result domain.QuizResult) {
	if s.cfg.onComplete != nil {
		s.cfg.onComplete(ctx, result)
	}
}

// finishLocked returns the completion record the first time the current
// attempt number is observed completed.
func (s *Session) finishLocked() (domain.QuizResult, bool) {
	if s.recorded || s.attempt.Phase() != engine.PhaseCompleted {
		return domain.QuizResult{}, false
	}
	s.recorded = true
	s.stopTimerLocked()
	return s.resultLocked(), true
}

func (s *Session) resultLocked() domain.QuizResult {
	quiz := s.attempt.Quiz()
	score, _ := s.attempt.Score()
	answers := s.attempt.Answers()

	records := make([]domain.AnswerRecord, 0, len(answers))
	for i, ans := range answers {
		points := 0
		if ans.Correct {
			points = quiz.Questions[i].Worth()
		}
		records = append(records, domain.AnswerRecord{
			QuestionIndex:       i,
			Answered:            ans.Answered,
			SelectedOptionIndex: ans.SelectedOptionIndex,
			Correct:             ans.Correct,
			Points:              points,
		})
	}

	return domain.QuizResult{
		ID:               uuid.NewString(),
		AttemptID:        s.id,
		UserID:           s.userID,
		QuizID:           quiz.ID,
		CorrectAnswers:   score.CorrectCount,
		TotalQuestions:   score.TotalQuestions,
		Percentage:       score.Percentage,
		Passed:           score.Passed,
		Points:           score.Points,
		MaxPoints:        score.MaxPoints,
		TimeSpentSeconds: s.attempt.ElapsedSeconds(),
		Reason:           s.reasonLocked(),
		AttemptNumber:    s.number,
		Answers:          records,
		CompletedAt:      s.cfg.now(),
	}
}

func (s *Session) reasonLocked() domain.CompletionReason {
	if s.attempt.Phase() != engine.PhaseCompleted {
		return ""
	}
	if s.attempt.Forced() {
		return domain.CompletionTimeout
	}
	return domain.CompletionAnswered
}

func (s *Session) subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked() Snapshot {
	s.version++
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// slow subscriber: drop its oldest update so the newest state always lands
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
	return snap
}

func (s *Session) snapshotLocked() Snapshot {
	a := s.attempt
	quiz := a.Quiz()
	snap := Snapshot{
		AttemptID:            s.id,
		QuizID:               quiz.ID,
		UserID:               s.userID,
		Title:                quiz.Title,
		AttemptNumber:        s.number,
		Version:              s.version,
		Phase:                a.Phase(),
		State:                a.State(),
		CurrentQuestionIndex: a.CurrentQuestionIndex(),
		TotalQuestions:       len(quiz.Questions),
		RemainingSeconds:     a.RemainingSeconds(),
		Progress:             a.Progress(),
		Reason:               s.reasonLocked(),
		UpdatedAt:            s.cfg.now(),
	}

	if a.Phase() == engine.PhaseCompleted {
		score, _ := a.Score()
		snap.FinalScore = &score
		snap.Answers = a.Answers()
		return snap
	}

	question := a.CurrentQuestion()
	view := &QuestionView{
		Index:   a.CurrentQuestionIndex(),
		Prompt:  question.Prompt,
		Options: question.Options,
		Points:  question.Worth(),
	}
	if selected, ok := a.Selected(); ok {
		snap.SelectedOptionIndex = &selected
		correct := question.CorrectOptionIndex
		view.CorrectOptionIndex = &correct
		view.Explanation = question.Explanation
	}
	snap.Question = view
	return snap
}
