package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"trivia-league-service/internal/config"
	"trivia-league-service/internal/domain"
	"trivia-league-service/internal/infra/postgres"
)

// NewSeedCmd uploads quiz definition files into postgres. Definitions keep
// their correct answers server-side; only the public listing strips them.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed [file...]",
		Short: "Insert quiz definition JSON files into the content store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}

			db := openBun(cfg.Postgres.URL)
			defer db.Close()

			for _, path := range args {
				quizzes, err := readQuizFile(path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				for _, quiz := range quizzes {
					if err := postgres.UpsertQuiz(cmd.Context(), db, quiz); err != nil {
						return fmt.Errorf("%s: quiz %s: %w", path, quiz.ID, err)
					}
					slog.Info("quiz seeded", "quiz", quiz.ID, "questions", len(quiz.Questions))
				}
			}
			return nil
		},
	}
}

// readQuizFile accepts either a single definition object or an array.
func readQuizFile(path string) ([]domain.QuizDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var list []domain.QuizDefinition
	if err := json.Unmarshal(data, &list); err != nil {
		var one domain.QuizDefinition
		if err := json.Unmarshal(data, &one); err != nil {
			return nil, fmt.Errorf("not a quiz definition: %w", err)
		}
		list = []domain.QuizDefinition{one}
	}

	for _, quiz := range list {
		if err := validateQuiz(quiz); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func validateQuiz(quiz domain.QuizDefinition) error {
	if quiz.ID == "" {
		return fmt.Errorf("quiz id required")
	}
	if len(quiz.Questions) == 0 {
		return fmt.Errorf("quiz %s: at least one question required", quiz.ID)
	}
	for _, q := range quiz.Questions {
		if len(q.Options) < 2 {
			return fmt.Errorf("quiz %s: question %s needs at least two options", quiz.ID, q.ID)
		}
		valid := false
		for _, opt := range q.Options {
			if opt == q.CorrectOption {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("quiz %s: question %s: correct option not among options", quiz.ID, q.ID)
		}
	}
	return nil
}
