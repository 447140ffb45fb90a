package app_test

import (
	"encoding/json"
	"strings"
	"testing"

	"elsa-quiz-room/internal/app"
	"elsa-quiz-room/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestPrepareHidesCorrectAnswer(t *testing.T) {
	q := domain.ExampleQuiz().Questions[0]
	d := app.NewDispatcherWithShuffle(func(s []int) { s[0], s[3] = s[3], s[0] }).Prepare(q, 0, 2, 30)

	require.Equal(t, []int{3, 1, 2, 0}, d.Order)
	require.Equal(t, []string{"6", "4", "5", "3"}, d.Payload.Options)
	require.Equal(t, 1, d.Correct)
	require.Equal(t, "4", d.OptionAt(q, d.Correct))
	require.Empty(t, d.OptionAt(q, 4))

	require.Equal(t, domain.QuestionPayload{
		QuestionNumber: 1,
		TotalQuestions: 2,
		Question:       "What is 2 + 2?",
		Options:        []string{"6", "4", "5", "3"},
		Points:         10,
		TimeLimit:      30,
	}, d.Payload)

	raw, err := json.Marshal(d.Payload)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "correct")

	// the source question is untouched
	require.Equal(t, []string{"3", "4", "5", "6"}, q.Options)
}

func TestShuffleIsUniform(t *testing.T) {
	q := domain.Question{Text: "pick", Options: []string{"a", "b", "c", "d"}, CorrectAnswer: domain.IndexKey(2), Points: 10}
	dispatcher := app.NewDispatcher()

	const rounds = 24000
	counts := make(map[string]int)
	for i := 0; i < rounds; i++ {
		d := dispatcher.Prepare(q, 0, 1, 30)
		require.Equal(t, "c", d.Payload.Options[d.Correct])
		counts[strings.Join(d.Payload.Options, "")]++
	}
	require.Len(t, counts, 24)

	expected := float64(rounds) / 24
	chi := 0.0
	for _, n := range counts {
		diff := float64(n) - expected
		chi += diff * diff / expected
	}
	// 23 degrees of freedom, p = 0.001
	require.Less(t, chi, 49.73)
}
