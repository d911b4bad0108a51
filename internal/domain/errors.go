package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUsage classifies rejections caused by the caller violating an attempt precondition.
	ErrUsage = errors.New("usage error")
	// ErrInvalidQuiz classifies rejections caused by malformed quiz content.
	ErrInvalidQuiz = errors.New("invalid quiz")
)

// Usage errors.
var (
	// ErrNoAnswerSelected is returned when advancing before an option was selected.
	ErrNoAnswerSelected = fmt.Errorf("%w: no answer selected", ErrUsage)
	// ErrOptionOutOfRange indicates a selected option index outside the current question's options.
	ErrOptionOutOfRange = fmt.Errorf("%w: option index out of range", ErrUsage)
	// ErrAttemptCompleted is returned when mutating an attempt that already finished.
	ErrAttemptCompleted = fmt.Errorf("%w: attempt already completed", ErrUsage)
)

// Data errors.
var (
	ErrNoQuestions           = fmt.Errorf("%w: quiz has no questions", ErrInvalidQuiz)
	ErrInvalidTimeLimit      = fmt.Errorf("%w: time limit must be positive", ErrInvalidQuiz)
	ErrTooFewOptions         = fmt.Errorf("%w: question needs at least two options", ErrInvalidQuiz)
	ErrCorrectOptionRange    = fmt.Errorf("%w: correct option index out of range", ErrInvalidQuiz)
	ErrInvalidPassingPercent = fmt.Errorf("%w: passing percentage must be within [0,100]", ErrInvalidQuiz)
	ErrInvalidQuestionPoints = fmt.Errorf("%w: question points must not be negative", ErrInvalidQuiz)
)

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrAttemptNotFound is returned when an attempt is not live on this instance.
	ErrAttemptNotFound = errors.New("quiz attempt not found")
)
