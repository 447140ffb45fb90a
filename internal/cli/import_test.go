package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"elsa-quiz-room/internal/domain"
)

func TestReadQuizFileNamesQuizAfterFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capitals.json")
	body := `[{"question":"Capital of France?","options":["Berlin","Paris","Rome","Madrid"],"correctAnswer":"Paris"}]`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	quiz, err := readQuizFile(path)
	if err != nil {
		t.Fatalf("read quiz: %v", err)
	}
	if quiz.ID != "capitals" {
		t.Fatalf("expected id from file name, got %q", quiz.ID)
	}
	if quiz.Questions[0].CorrectIndex() != 1 {
		t.Fatalf("expected correct index 1, got %d", quiz.Questions[0].CorrectIndex())
	}
}

func TestReadQuizFileRejectsInvalidQuiz(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte(`{"questions":[{"question":"?","options":["a"]}]}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := readQuizFile(path); !errors.Is(err, domain.ErrInvalidQuiz) {
		t.Fatalf("expected invalid quiz, got %v", err)
	}
}
