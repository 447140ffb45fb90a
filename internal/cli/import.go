package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"elsa-quiz-room/internal/config"
	"elsa-quiz-room/internal/domain"
	"elsa-quiz-room/internal/infra/postgres"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
)

// NewImportQuizCmd stores quiz JSON files in the quiz library.
func NewImportQuizCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import-quiz FILE...",
		Short: "Validate quiz JSON files and store them in the quiz library",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), *configPath, args)
		},
	}
}

func runImport(ctx context.Context, configPath string, files []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	logger := newLogger(os.Stdout, cfg.Server)

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	library := postgres.NewQuizLoader(pool)

	for _, file := range files {
		quiz, err := readQuizFile(file)
		if err != nil {
			return err
		}
		if err := library.SaveQuiz(ctx, quiz); err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		logger.Info("quiz imported", "quiz", quiz.ID, "questions", len(quiz.Questions), "file", file)
	}
	return nil
}

// readQuizFile parses a quiz file. Quizzes without an id are named after the file.
func readQuizFile(path string) (domain.Quiz, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.Quiz{}, err
	}
	quiz, err := domain.ParseQuiz(raw)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("%s: %w", path, err)
	}
	if quiz.ID == "" {
		quiz.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return quiz, nil
}
