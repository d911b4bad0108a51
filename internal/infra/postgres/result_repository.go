package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"micro-quiz-service/internal/domain"
)

// ResultRepository stores completion records in the quiz_results table.
type ResultRepository struct {
	pool *pgxpool.Pool
}

func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

func (r *ResultRepository) SaveResult(ctx context.Context, result domain.QuizResult) error {
	answers, err := json.Marshal(result.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO quiz_results (
			id, attempt_id, user_id, quiz_id, correct_answers, total_questions, percentage, passed,
			points, max_points, time_spent_seconds, reason, attempt_number, answers, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (attempt_id, attempt_number) DO NOTHING`,
		result.ID, result.AttemptID, result.UserID, result.QuizID,
		result.CorrectAnswers, result.TotalQuestions, result.Percentage, result.Passed,
		result.Points, result.MaxPoints, result.TimeSpentSeconds, string(result.Reason),
		result.AttemptNumber, answers, result.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert quiz result: %w", err)
	}
	return nil
}

// RecentResults returns up to limit results for userID, newest first.
func (r *ResultRepository) RecentResults(ctx context.Context, userID string, limit int) ([]domain.QuizResult, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, attempt_id, user_id, quiz_id, correct_answers, total_questions, percentage, passed,
			points, max_points, time_spent_seconds, reason, attempt_number, answers, completed_at
		FROM quiz_results
		WHERE user_id = $1
		ORDER BY completed_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query quiz results: %w", err)
	}
	defer rows.Close()

	var results []domain.QuizResult
	for rows.Next() {
		var (
			result  domain.QuizResult
			reason  string
			answers []byte
		)
		if err := rows.Scan(
			&result.ID, &result.AttemptID, &result.UserID, &result.QuizID,
			&result.CorrectAnswers, &result.TotalQuestions, &result.Percentage, &result.Passed,
			&result.Points, &result.MaxPoints, &result.TimeSpentSeconds, &reason,
			&result.AttemptNumber, &answers, &result.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan quiz result: %w", err)
		}
		result.Reason = domain.CompletionReason(reason)
		if err := json.Unmarshal(answers, &result.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers: %w", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}
