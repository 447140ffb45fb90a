package app

import (
	"math"
	"time"
)

// Outcome is the result of scoring one submission.
type Outcome struct {
	Correct bool
	Points  int
	// Elapsed is the time between dispatch and submission, never negative.
	Elapsed time.Duration
}

// Score checks a submitted option slot against the dispatch record and awards
// base points plus one bonus point for every full 3 seconds left in the budget.
// A submission stamped before the question was dispatched counts as instant.
func Score(basePoints int, d Dispatch, answerIndex int, submittedAt, startedAt time.Time, budget time.Duration) Outcome {
	elapsed := submittedAt.Sub(startedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	inRange := answerIndex >= 0 && answerIndex < len(d.Order)
	out := Outcome{Correct: inRange && answerIndex == d.Correct, Elapsed: elapsed}
	if !out.Correct {
		return out
	}

	remaining := budget.Seconds() - elapsed.Seconds()
	bonus := int(math.Floor(remaining / 3))
	if bonus < 0 {
		bonus = 0
	}
	out.Points = basePoints + bonus
	return out
}
