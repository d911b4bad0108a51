package memory

import (
	"context"
	"sort"
	"sync"

	"micro-quiz-service/internal/domain"
)

// ResultStore keeps completion records in memory, for demos and tests.
type ResultStore struct {
	mu      sync.RWMutex
	results map[string][]domain.QuizResult
}

func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[string][]domain.QuizResult)}
}

func (s *ResultStore) SaveResult(_ context.Context, result domain.QuizResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[result.UserID] = append(s.results[result.UserID], result)
	return nil
}

// RecentResults returns up to limit results for userID, newest first.
func (s *ResultStore) RecentResults(_ context.Context, userID string, limit int) ([]domain.QuizResult, error) {
	s.mu.RLock()
	results := append([]domain.QuizResult(nil), s.results[userID]...)
	s.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CompletedAt.After(results[j].CompletedAt)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
