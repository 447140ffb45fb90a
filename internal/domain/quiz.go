package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// AnswerKey designates the correct option either by index or by option value.
// Normalize resolves value designators to an index.
type AnswerKey struct {
	Index   int
	Value   string
	byValue bool
}

// IndexKey designates the correct option by position.
func IndexKey(i int) AnswerKey { return AnswerKey{Index: i} }

// ValueKey designates the correct option by its text.
func ValueKey(v string) AnswerKey { return AnswerKey{Value: v, byValue: true} }

func (k AnswerKey) MarshalJSON() ([]byte, error) {
	if k.byValue {
		return json.Marshal(k.Value)
	}
	return json.Marshal(k.Index)
}

func (k *AnswerKey) UnmarshalJSON(data []byte) error {
	var idx int
	if err := json.Unmarshal(data, &idx); err == nil {
		*k = IndexKey(idx)
		return nil
	}
	var val string
	if err := json.Unmarshal(data, &val); err != nil {
		return fmt.Errorf("correctAnswer must be an option index or value: %w", err)
	}
	*k = ValueKey(val)
	return nil
}

// LegacyChoices is the older question shape where the first choice is always correct.
type LegacyChoices struct {
	Correct string `json:"correct"`
	Wrong1  string `json:"wrong1"`
	Wrong2  string `json:"wrong2"`
	Wrong3  string `json:"wrong3"`
}

// Question models a multiple choice question with exactly one correct option.
type Question struct {
	ID            string         `json:"id,omitempty"`
	Text          string         `json:"question" validate:"required"`
	Options       []string       `json:"options" validate:"len=4,dive,required"`
	CorrectAnswer AnswerKey      `json:"correctAnswer"`
	Points        int            `json:"points,omitempty" validate:"gte=0"`
	TimeLimit     int            `json:"timeLimit,omitempty" validate:"gte=0"`
	Category      string         `json:"category,omitempty"`
	Choices       *LegacyChoices `json:"choices,omitempty" validate:"-"`
}

// CorrectIndex is the position of the correct option in Options.
func (q Question) CorrectIndex() int { return q.CorrectAnswer.Index }

// CorrectText is the text of the correct option.
func (q Question) CorrectText() string {
	if i := q.CorrectIndex(); i >= 0 && i < len(q.Options) {
		return q.Options[i]
	}
	return ""
}

// Quiz is an ordered set of questions loaded as a unit.
type Quiz struct {
	ID              string     `json:"quizId,omitempty"`
	Title           string     `json:"title,omitempty"`
	Description     string     `json:"description,omitempty"`
	TimePerQuestion int        `json:"timePerQuestion,omitempty" validate:"gte=0"`
	Questions       []Question `json:"questions" validate:"dive"`
}

// TimeLimit returns the time budget in seconds for question i.
func (q Quiz) TimeLimit(i int) int {
	if i >= 0 && i < len(q.Questions) && q.Questions[i].TimeLimit > 0 {
		return q.Questions[i].TimeLimit
	}
	if q.TimePerQuestion > 0 {
		return q.TimePerQuestion
	}
	return DefaultTimePerQuestion
}

// Clone returns a deep copy so a running room never shares slices with its source.
func (q Quiz) Clone() Quiz {
	out := q
	out.Questions = make([]Question, len(q.Questions))
	for i, question := range q.Questions {
		question.Options = slices.Clone(question.Options)
		if question.Choices != nil {
			c := *question.Choices
			question.Choices = &c
		}
		out.Questions[i] = question
	}
	return out
}

// Normalize converts legacy shapes, applies defaults, validates the quiz and
// resolves value designators to indices.
func (q *Quiz) Normalize() error {
	if q.TimePerQuestion == 0 {
		q.TimePerQuestion = DefaultTimePerQuestion
	}
	for i := range q.Questions {
		question := &q.Questions[i]
		if len(question.Options) == 0 && question.Choices != nil {
			c := question.Choices
			question.Options = []string{c.Correct, c.Wrong1, c.Wrong2, c.Wrong3}
			question.CorrectAnswer = IndexKey(0)
		}
		question.Choices = nil
		if question.Points == 0 {
			question.Points = DefaultPoints
		}
		if question.ID == "" {
			question.ID = fmt.Sprintf("q%d", i+1)
		}
	}

	if err := validate.Struct(q); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidQuiz, err)
	}

	for i := range q.Questions {
		question := &q.Questions[i]
		key := question.CorrectAnswer
		if key.byValue {
			idx := slices.Index(question.Options, key.Value)
			if idx < 0 {
				return fmt.Errorf("%w: question %d: correct answer %q is not one of its options", ErrInvalidQuiz, i+1, key.Value)
			}
			question.CorrectAnswer = IndexKey(idx)
			continue
		}
		if key.Index < 0 || key.Index >= len(question.Options) {
			return fmt.Errorf("%w: question %d: correct answer index %d out of range", ErrInvalidQuiz, i+1, key.Index)
		}
	}
	return nil
}

// ParseQuiz decodes a quiz from JSON. Both {questions:[...]} and a bare array of
// questions are accepted.
func ParseQuiz(raw []byte) (Quiz, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Quiz{}, fmt.Errorf("%w: empty document", ErrInvalidQuiz)
	}

	var quiz Quiz
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &quiz.Questions); err != nil {
			return Quiz{}, fmt.Errorf("%w: %v", ErrInvalidQuiz, err)
		}
	} else if err := json.Unmarshal(trimmed, &quiz); err != nil {
		return Quiz{}, fmt.Errorf("%w: %v", ErrInvalidQuiz, err)
	}

	if err := quiz.Normalize(); err != nil {
		return Quiz{}, err
	}
	return quiz, nil
}

// ExampleQuiz is the sample quiz offered to admins as a template.
func ExampleQuiz() Quiz {
	return Quiz{
		ID:              "example-001",
		Title:           "Example Quiz",
		Description:     "Sample quiz data",
		TimePerQuestion: DefaultTimePerQuestion,
		Questions: []Question{
			{
				ID:            "q1",
				Text:          "What is 2 + 2?",
				Options:       []string{"3", "4", "5", "6"},
				CorrectAnswer: IndexKey(1),
				Points:        DefaultPoints,
				Category:      "Math",
			},
			{
				ID:            "q2",
				Text:          "What color is the sky?",
				Options:       []string{"Red", "Blue", "Green", "Yellow"},
				CorrectAnswer: IndexKey(1),
				Points:        DefaultPoints,
				Category:      "Science",
			},
		},
	}
}

// QuizPreview is a quiz as players may see it: no answer key, and options
// sorted so their authored order carries no hint either.
type QuizPreview struct {
	ID              string            `json:"quizId,omitempty"`
	Title           string            `json:"title,omitempty"`
	Description     string            `json:"description,omitempty"`
	TimePerQuestion int               `json:"timePerQuestion,omitempty"`
	Questions       []QuestionPreview `json:"questions"`
}

type QuestionPreview struct {
	ID        string   `json:"id,omitempty"`
	Text      string   `json:"question"`
	Options   []string `json:"options"`
	Points    int      `json:"points,omitempty"`
	TimeLimit int      `json:"timeLimit,omitempty"`
	Category  string   `json:"category,omitempty"`
}

// Preview returns the answer-free view of a normalized quiz.
func (q Quiz) Preview() QuizPreview {
	out := QuizPreview{
		ID:              q.ID,
		Title:           q.Title,
		Description:     q.Description,
		TimePerQuestion: q.TimePerQuestion,
		Questions:       make([]QuestionPreview, 0, len(q.Questions)),
	}
	for _, question := range q.Questions {
		options := slices.Clone(question.Options)
		slices.Sort(options)
		out.Questions = append(out.Questions, QuestionPreview{
			ID:        question.ID,
			Text:      question.Text,
			Options:   options,
			Points:    question.Points,
			TimeLimit: question.TimeLimit,
			Category:  question.Category,
		})
	}
	return out
}
