package memory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"micro-quiz-service/internal/domain"
)

type quizFile struct {
	Quizzes []domain.Quiz `yaml:"quizzes"`
}

// LoadQuizFile reads a YAML quiz catalogue. Every quiz is validated; a single
// malformed quiz rejects the whole file.
func LoadQuizFile(path string) (map[string]domain.Quiz, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseQuizzes(data)
}

// ParseQuizzes decodes a YAML quiz catalogue keyed by quiz ID.
func ParseQuizzes(data []byte) (map[string]domain.Quiz, error) {
	var file quizFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode quizzes: %w", err)
	}
	quizzes := make(map[string]domain.Quiz, len(file.Quizzes))
	for _, quiz := range file.Quizzes {
		if quiz.ID == "" {
			return nil, fmt.Errorf("quiz %q: missing id", quiz.Title)
		}
		if _, dup := quizzes[quiz.ID]; dup {
			return nil, fmt.Errorf("quiz %s: duplicate id", quiz.ID)
		}
		if err := quiz.Validate(); err != nil {
			return nil, fmt.Errorf("quiz %s: %w", quiz.ID, err)
		}
		quizzes[quiz.ID] = quiz
	}
	return quizzes, nil
}
