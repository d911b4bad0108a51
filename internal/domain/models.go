package domain

import (
	"fmt"
	"time"
)

// DefaultPassingPercentage applies when a quiz does not set its own threshold.
const DefaultPassingPercentage = 70

// Question models an MCQ question with exactly one correct option.
type Question struct {
	Prompt             string   `json:"prompt" yaml:"prompt"`
	Options            []string `json:"options" yaml:"options"`
	CorrectOptionIndex int      `json:"correctOptionIndex" yaml:"correctOptionIndex"`
	Explanation        string   `json:"explanation,omitempty" yaml:"explanation,omitempty"`
	Points             int      `json:"points,omitempty" yaml:"points,omitempty"` // defaults to 1 if zero
}

// Worth returns the points awarded for answering the question correctly.
func (q Question) Worth() int {
	if q.Points == 0 {
		return 1
	}
	return q.Points
}

// Quiz is an ordered collection of questions answered against a time budget.
type Quiz struct {
	ID                string     `json:"id" yaml:"id"`
	Title             string     `json:"title" yaml:"title"`
	Description       string     `json:"description" yaml:"description"`
	Category          string     `json:"category,omitempty" yaml:"category,omitempty"`
	Difficulty        string     `json:"difficulty,omitempty" yaml:"difficulty,omitempty"`
	TimeLimitSeconds  int        `json:"timeLimitSeconds" yaml:"timeLimitSeconds"`
	PassingPercentage *int       `json:"passingPercentage,omitempty" yaml:"passingPercentage,omitempty"`
	Questions         []Question `json:"questions" yaml:"questions"`
}

// PassingThreshold returns the percentage a score must reach to pass.
func (q Quiz) PassingThreshold() int {
	if q.PassingPercentage == nil {
		return DefaultPassingPercentage
	}
	return *q.PassingPercentage
}

// Clone returns a deep copy that shares no slices or pointers with q.
func (q Quiz) Clone() Quiz {
	out := q
	if q.PassingPercentage != nil {
		p := *q.PassingPercentage
		out.PassingPercentage = &p
	}
	if q.Questions != nil {
		out.Questions = make([]Question, len(q.Questions))
		for i, question := range q.Questions {
			question.Options = append([]string(nil), question.Options...)
			out.Questions[i] = question
		}
	}
	return out
}

// Validate rejects quiz content no attempt can be started against.
func (q Quiz) Validate() error {
	if len(q.Questions) == 0 {
		return ErrNoQuestions
	}
	if q.TimeLimitSeconds <= 0 {
		return ErrInvalidTimeLimit
	}
	if p := q.PassingThreshold(); p < 0 || p > 100 {
		return ErrInvalidPassingPercent
	}
	for i, question := range q.Questions {
		if len(question.Options) < 2 {
			return fmt.Errorf("question %d: %w", i, ErrTooFewOptions)
		}
		if question.CorrectOptionIndex < 0 || question.CorrectOptionIndex >= len(question.Options) {
			return fmt.Errorf("question %d: %w", i, ErrCorrectOptionRange)
		}
		if question.Points < 0 {
			return fmt.Errorf("question %d: %w", i, ErrInvalidQuestionPoints)
		}
	}
	return nil
}

// PublicQuestion is a question stripped of its answer key.
type PublicQuestion struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
	Points  int      `json:"points"`
}

// PublicQuiz is the catalogue view of a quiz safe to send to clients before an attempt.
type PublicQuiz struct {
	ID                string           `json:"id"`
	Title             string           `json:"title"`
	Description       string           `json:"description"`
	Category          string           `json:"category,omitempty"`
	Difficulty        string           `json:"difficulty,omitempty"`
	TimeLimitSeconds  int              `json:"timeLimitSeconds"`
	PassingPercentage int              `json:"passingPercentage"`
	Questions         []PublicQuestion `json:"questions"`
}

// Public strips correct answers and explanations.
func (q Quiz) Public() PublicQuiz {
	questions := make([]PublicQuestion, 0, len(q.Questions))
	for _, question := range q.Questions {
		questions = append(questions, PublicQuestion{
			Prompt:  question.Prompt,
			Options: append([]string(nil), question.Options...),
			Points:  question.Worth(),
		})
	}
	return PublicQuiz{
		ID:                q.ID,
		Title:             q.Title,
		Description:       q.Description,
		Category:          q.Category,
		Difficulty:        q.Difficulty,
		TimeLimitSeconds:  q.TimeLimitSeconds,
		PassingPercentage: q.PassingThreshold(),
		Questions:         questions,
	}
}

// QuizSummary is the listing view of a quiz: catalogue metadata without the
// questions themselves.
type QuizSummary struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	Description       string `json:"description"`
	Category          string `json:"category,omitempty"`
	Difficulty        string `json:"difficulty,omitempty"`
	TimeLimitSeconds  int    `json:"timeLimitSeconds"`
	PassingPercentage int    `json:"passingPercentage"`
	QuestionCount     int    `json:"questionCount"`
}

func (q Quiz) Summary() QuizSummary {
	return QuizSummary{
		ID:                q.ID,
		Title:             q.Title,
		Description:       q.Description,
		Category:          q.Category,
		Difficulty:        q.Difficulty,
		TimeLimitSeconds:  q.TimeLimitSeconds,
		PassingPercentage: q.PassingThreshold(),
		QuestionCount:     len(q.Questions),
	}
}

// CompletionReason records how an attempt reached its terminal phase.
type CompletionReason string

const (
	CompletionAnswered CompletionReason = "answered"
	CompletionTimeout  CompletionReason = "timeout"
)

// AnswerRecord is the durable form of one question's outcome.
type AnswerRecord struct {
	QuestionIndex       int  `json:"questionIndex"`
	Answered            bool `json:"answered"`
	SelectedOptionIndex int  `json:"selectedOptionIndex"`
	Correct             bool `json:"correct"`
	Points              int  `json:"points"`
}

// QuizResult is the completion record handed to result persistence.
type QuizResult struct {
	ID               string           `json:"id"`
	AttemptID        string           `json:"attemptId"`
	UserID           string           `json:"userId"`
	QuizID           string           `json:"quizId"`
	CorrectAnswers   int              `json:"correctAnswers"`
	TotalQuestions   int              `json:"totalQuestions"`
	Percentage       int              `json:"percentage"`
	Passed           bool             `json:"passed"`
	Points           int              `json:"points"`
	MaxPoints        int              `json:"maxPoints"`
	TimeSpentSeconds int              `json:"timeSpentSeconds"`
	Reason           CompletionReason `json:"reason"`
	AttemptNumber    int              `json:"attemptNumber"`
	Answers          []AnswerRecord   `json:"answers"`
	CompletedAt      time.Time        `json:"completedAt"`
}
