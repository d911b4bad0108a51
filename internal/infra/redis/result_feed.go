package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"micro-quiz-service/internal/app"
	"micro-quiz-service/internal/domain"
)

// ResultFeed keeps a capped list of each user's latest results in Redis in
// front of a durable ResultRepository. Writes go to the inner store first; the
// feed is only a read path.
type ResultFeed struct {
	client *redis.Client
	inner  app.ResultRepository
	size   int
	logger zerolog.Logger
}

func NewResultFeed(client *redis.Client, inner app.ResultRepository, size int, logger zerolog.Logger) *ResultFeed {
	if size <= 0 {
		size = 20
	}
	return &ResultFeed{
		client: client,
		inner:  inner,
		size:   size,
		logger: logger.With().Str("component", "redis_result_feed").Logger(),
	}
}

func (f *ResultFeed) SaveResult(ctx context.Context, result domain.QuizResult) error {
	if err := f.inner.SaveResult(ctx, result); err != nil {
		return err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	key := f.key(result.UserID)
	pipe := f.client.TxPipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, int64(f.size-1))
	if _, err := pipe.Exec(ctx); err != nil {
		// the durable copy exists and short feeds fall back to it
		f.logger.Warn().Err(err).Str("user_id", result.UserID).Msg("push result feed")
	}
	return nil
}

// RecentResults serves from the feed when it holds at least limit entries,
// otherwise it reads the inner store.
func (f *ResultFeed) RecentResults(ctx context.Context, userID string, limit int) ([]domain.QuizResult, error) {
	if limit > 0 && limit <= f.size {
		if results, ok := f.fromFeed(ctx, userID, limit); ok {
			return results, nil
		}
	}
	return f.inner.RecentResults(ctx, userID, limit)
}

func (f *ResultFeed) fromFeed(ctx context.Context, userID string, limit int) ([]domain.QuizResult, bool) {
	items, err := f.client.LRange(ctx, f.key(userID), 0, int64(limit-1)).Result()
	if err != nil {
		f.logger.Warn().Err(err).Str("user_id", userID).Msg("read result feed")
		return nil, false
	}
	if len(items) < limit {
		// a short feed may just be cold after a restart
		return nil, false
	}

	results := make([]domain.QuizResult, 0, len(items))
	for _, item := range items {
		var result domain.QuizResult
		if err := json.Unmarshal([]byte(item), &result); err != nil {
			f.logger.Warn().Err(err).Str("user_id", userID).Msg("decode result feed entry")
			return nil, false
		}
		results = append(results, result)
	}
	return results, true
}

func (f *ResultFeed) key(userID string) string {
	return "quiz:results:" + userID
}
