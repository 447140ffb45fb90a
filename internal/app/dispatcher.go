package app

import (
	"elsa-quiz-room/internal/domain"
	"github.com/samber/lo"
	"github.com/samber/lo/mutable"
)

// Dispatch is the record kept for the question currently on screen.
// Order[slot] is the index into the question's options shown at that slot.
type Dispatch struct {
	Order   []int
	Correct int
	Payload domain.QuestionPayload
}

// OptionAt returns the option text shown at a slot, or "" when out of range.
func (d Dispatch) OptionAt(q domain.Question, slot int) string {
	if slot < 0 || slot >= len(d.Order) {
		return ""
	}
	return q.Options[d.Order[slot]]
}

// Dispatcher prepares questions for broadcast.
type Dispatcher struct {
	shuffle func([]int)
}

// NewDispatcher returns a dispatcher using an unbiased Fisher-Yates shuffle.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{shuffle: func(s []int) { mutable.Shuffle(s) }}
}

// NewDispatcherWithShuffle is test-only for deterministic option orders.
func NewDispatcherWithShuffle(shuffle func([]int)) *Dispatcher {
	return &Dispatcher{shuffle: shuffle}
}

// Prepare shuffles the options of question q (zero-based index of total) and
// returns the dispatch record holding the correct slot.
func (d *Dispatcher) Prepare(q domain.Question, index, total, timeLimit int) Dispatch {
	order := lo.Range(len(q.Options))
	d.shuffle(order)

	correct := lo.IndexOf(order, q.CorrectIndex())
	options := lo.Map(order, func(i int, _ int) string { return q.Options[i] })

	points := q.Points
	if points == 0 {
		points = domain.DefaultPoints
	}
	return Dispatch{
		Order:   order,
		Correct: correct,
		Payload: domain.QuestionPayload{
			QuestionNumber: index + 1,
			TotalQuestions: total,
			Question:       q.Text,
			Options:        options,
			Points:         points,
			TimeLimit:      timeLimit,
		},
	}
}
