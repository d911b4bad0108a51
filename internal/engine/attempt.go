// Package engine implements the quiz-taking state machine: answer recording,
// question progression, timer-driven completion and scoring.
//
// An Attempt is not safe for concurrent use. Hosts serialize calls, typically by
// holding a lock around every operation including Tick.
package engine

import (
	"micro-quiz-service/internal/domain"
)

// Phase is the top-level lifecycle of an attempt.
type Phase string

const (
	PhaseInProgress Phase = "in_progress"
	PhaseCompleted  Phase = "completed"
)

// State is the progression state of an attempt.
type State string

const (
	StateAwaitingSelection State = "awaiting_selection"
	StateSelected          State = "selected"
	StateCompleted         State = "completed"
)

// Answer is the committed outcome for one question.
type Answer struct {
	Answered            bool `json:"answered"`
	SelectedOptionIndex int  `json:"selectedOptionIndex"`
	Correct             bool `json:"correct"`
}

// Score is the final outcome of a completed attempt.
type Score struct {
	CorrectCount   int  `json:"correctCount"`
	TotalQuestions int  `json:"totalQuestions"`
	Percentage     int  `json:"percentage"`
	Passed         bool `json:"passed"`
	Points         int  `json:"points"`
	MaxPoints      int  `json:"maxPoints"`
}

// Attempt is one run through a quiz.
type Attempt struct {
	quiz domain.Quiz

	current     int
	answers     []Answer
	selected    int
	hasSelected bool
	remaining   int
	phase       Phase
	forced      bool
	score       *Score
}

// New validates the quiz and starts an attempt at the first question. The
// attempt keeps its own copy of the quiz content.
func New(quiz domain.Quiz) (*Attempt, error) {
	if err := quiz.Validate(); err != nil {
		return nil, err
	}
	a := &Attempt{quiz: quiz.Clone()}
	a.Reset()
	return a, nil
}

// Reset discards all progress and starts over against the same quiz.
func (a *Attempt) Reset() {
	a.current = 0
	a.answers = make([]Answer, len(a.quiz.Questions))
	a.selected = 0
	a.hasSelected = false
	a.remaining = a.quiz.TimeLimitSeconds
	a.phase = PhaseInProgress
	a.forced = false
	a.score = nil
}

// SelectAnswer records the pending choice for the current question. The first
// selection wins; later selections for the same question are ignored.
func (a *Attempt) SelectAnswer(optionIndex int) (State, error) {
	if a.phase == PhaseCompleted {
		return StateCompleted, domain.ErrAttemptCompleted
	}
	if a.hasSelected || a.answers[a.current].Answered {
		return a.State(), nil
	}
	if optionIndex < 0 || optionIndex >= len(a.quiz.Questions[a.current].Options) {
		return a.State(), domain.ErrOptionOutOfRange
	}
	a.selected = optionIndex
	a.hasSelected = true
	return StateSelected, nil
}

// Advance commits the pending selection and moves to the next question, or
// completes the attempt after the last one.
func (a *Attempt) Advance() (State, error) {
	if a.phase == PhaseCompleted {
		return StateCompleted, domain.ErrAttemptCompleted
	}
	if !a.hasSelected {
		return StateAwaitingSelection, domain.ErrNoAnswerSelected
	}

	question := a.quiz.Questions[a.current]
	a.answers[a.current] = Answer{
		Answered:            true,
		SelectedOptionIndex: a.selected,
		Correct:             a.selected == question.CorrectOptionIndex,
	}
	a.selected = 0
	a.hasSelected = false

	if a.current == len(a.quiz.Questions)-1 {
		return a.Complete(false), nil
	}
	a.current++
	return StateAwaitingSelection, nil
}

// Tick consumes one second of the time budget. Reaching zero forces completion.
// Ticks after completion are ignored.
func (a *Attempt) Tick() State {
	if a.phase == PhaseCompleted {
		return StateCompleted
	}
	if a.remaining > 0 {
		a.remaining--
	}
	if a.remaining == 0 {
		return a.Complete(true)
	}
	return a.State()
}

// Complete ends the attempt and computes its score. Questions without a
// committed answer count as incorrect. Only the first call has an effect.
func (a *Attempt) Complete(forced bool) State {
	if a.phase == PhaseCompleted {
		return StateCompleted
	}

	total := len(a.quiz.Questions)
	score := Score{TotalQuestions: total}
	for i, question := range a.quiz.Questions {
		score.MaxPoints += question.Worth()
		if a.answers[i].Answered && a.answers[i].Correct {
			score.CorrectCount++
			score.Points += question.Worth()
		}
	}
	score.Percentage = percentage(score.CorrectCount, total)
	score.Passed = score.Percentage >= a.quiz.PassingThreshold()

	a.selected = 0
	a.hasSelected = false
	a.forced = forced
	a.phase = PhaseCompleted
	a.score = &score
	return StateCompleted
}

// percentage is round-half-up of 100*correct/total.
func percentage(correct, total int) int {
	return (200*correct + total) / (2 * total)
}

// State reports the progression state.
func (a *Attempt) State() State {
	switch {
	case a.phase == PhaseCompleted:
		return StateCompleted
	case a.hasSelected:
		return StateSelected
	default:
		return StateAwaitingSelection
	}
}

// Progress is the completion fraction (current position over total questions).
func (a *Attempt) Progress() float64 {
	return float64(a.current+1) / float64(len(a.quiz.Questions))
}

// Quiz returns the attempt's quiz. The result shares storage with the attempt
// and must be treated as read-only.
func (a *Attempt) Quiz() domain.Quiz { return a.quiz }

func (a *Attempt) Phase() Phase { return a.phase }

func (a *Attempt) CurrentQuestionIndex() int { return a.current }

// CurrentQuestion returns the question at the current position.
func (a *Attempt) CurrentQuestion() domain.Question {
	question := a.quiz.Questions[a.current]
	question.Options = append([]string(nil), question.Options...)
	return question
}

// Selected returns the pending selection, if any.
func (a *Attempt) Selected() (int, bool) { return a.selected, a.hasSelected }

func (a *Attempt) RemainingSeconds() int { return a.remaining }

// ElapsedSeconds is the part of the time budget already consumed.
func (a *Attempt) ElapsedSeconds() int { return a.quiz.TimeLimitSeconds - a.remaining }

// Forced reports whether completion was triggered by timer expiry.
func (a *Attempt) Forced() bool { return a.forced }

// Score returns the final score once the attempt is completed.
func (a *Attempt) Score() (Score, bool) {
	if a.score == nil {
		return Score{}, false
	}
	return *a.score, true
}

// Answers returns a copy of the per-question answer slots.
func (a *Attempt) Answers() []Answer {
	return append([]Answer(nil), a.answers...)
}
