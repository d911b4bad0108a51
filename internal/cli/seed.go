package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"micro-quiz-service/internal/config"
	"micro-quiz-service/internal/infra/memory"
	"micro-quiz-service/internal/infra/postgres"
	"micro-quiz-service/internal/logging"
)

// NewSeedCmd loads quizzes from a YAML file into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert quizzes from a YAML file into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if file == "" {
				file = cfg.Quiz.SeedFile
			}
			ctx := logging.IntoContext(cmd.Context(), newLogger(cfg))
			return runSeed(ctx, cfg, file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "quiz YAML file (defaults to quiz.seedFile)")
	return cmd
}

func runSeed(ctx context.Context, cfg config.Config, file string) error {
	logger := logging.FromContext(ctx)
	if file == "" {
		return fmt.Errorf("no quiz file given")
	}
	quizzes, err := memory.LoadQuizFile(file)
	if err != nil {
		return err
	}
	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}

	db := openBunDB(cfg.Postgres.URL)
	defer db.Close()

	ids, err := postgres.NewSeeder(db).Seed(ctx, quizzes)
	if err != nil {
		return err
	}
	logger.Info().Strs("quiz_ids", ids).Str("file", file).Msg("quizzes seeded")
	return nil
}
