package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/uptrace/bun"

	"micro-quiz-service/internal/domain"
)

type quizRow struct {
	bun.BaseModel `bun:"table:quizzes"`

	ID        string          `bun:"id,pk"`
	Data      json.RawMessage `bun:"data,type:jsonb"`
	UpdatedAt time.Time       `bun:"updated_at"`
}

// Seeder upserts quiz documents so the loader can serve them.
type Seeder struct {
	db  *bun.DB
	now func() time.Time
}

func NewSeeder(db *bun.DB) *Seeder {
	return &Seeder{db: db, now: time.Now}
}

// Seed validates every quiz before writing any, then upserts them in one
// transaction. It returns the seeded ids in order.
func (s *Seeder) Seed(ctx context.Context, quizzes map[string]domain.Quiz) ([]string, error) {
	ids := make([]string, 0, len(quizzes))
	for id := range quizzes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make([]quizRow, 0, len(ids))
	for _, id := range ids {
		quiz := quizzes[id]
		quiz.ID = id
		if err := quiz.Validate(); err != nil {
			return nil, fmt.Errorf("quiz %s: %w", id, err)
		}
		data, err := json.Marshal(quiz)
		if err != nil {
			return nil, fmt.Errorf("marshal quiz %s: %w", id, err)
		}
		rows = append(rows, quizRow{ID: id, Data: data, UpdatedAt: s.now()})
	}
	if len(rows) == 0 {
		return nil, nil
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(&rows).
			On("CONFLICT (id) DO UPDATE").
			Set("data = EXCLUDED.data").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("upsert quizzes: %w", err)
	}
	return ids, nil
}
