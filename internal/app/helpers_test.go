package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"elsa-quiz-room/internal/app"
	"elsa-quiz-room/internal/domain"
	"elsa-quiz-room/internal/infra/memory"
	"github.com/stretchr/testify/require"
)

const (
	testReveal = 20 * time.Millisecond
	waitFor    = 2 * time.Second
	tick       = 5 * time.Millisecond
)

// recorder is an Outbox that keeps every event per connection.
type recorder struct {
	mu     sync.Mutex
	events map[domain.ConnID][]domain.Event
}

func newRecorder() *recorder {
	return &recorder{events: make(map[domain.ConnID][]domain.Event)}
}

func (r *recorder) Send(conn domain.ConnID, evt domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[conn] = append(r.events[conn], evt)
}

func (r *recorder) of(conn domain.ConnID) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events[conn]...)
}

func (r *recorder) types(conn domain.ConnID) []string {
	var out []string
	for _, e := range r.of(conn) {
		out = append(out, e.Type)
	}
	return out
}

func (r *recorder) count(conn domain.ConnID, typ string) int {
	n := 0
	for _, e := range r.of(conn) {
		if e.Type == typ {
			n++
		}
	}
	return n
}

// last returns the payload of the most recent event of typ sent to conn.
func last[T any](t *testing.T, r *recorder, conn domain.ConnID, typ string) T {
	t.Helper()
	events := r.of(conn)
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == typ {
			payload, ok := events[i].Payload.(T)
			require.Truef(t, ok, "payload of %s is %T", typ, events[i].Payload)
			return payload
		}
	}
	require.Failf(t, "event not delivered", "%s never sent to %s; got %v", typ, conn, r.types(conn))
	var zero T
	return zero
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	t      *testing.T
	ctx    context.Context
	rooms  *app.RoomRegistry
	outbox *recorder
	clock  *fakeClock
	orch   *app.Orchestrator
}

func newHarness(t *testing.T, opts ...app.Option) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		ctx:    context.Background(),
		rooms:  app.NewRoomRegistry(memory.NewRoomStore(), nil),
		outbox: newRecorder(),
		clock:  newFakeClock(),
	}
	base := []app.Option{
		app.WithClock(h.clock.Now),
		app.WithRevealDelay(testReveal),
		// identity order keeps the correct slot equal to the authored index
		app.WithDispatcher(app.NewDispatcherWithShuffle(func([]int) {})),
	}
	h.orch = app.NewOrchestrator(h.rooms, h.outbox, append(base, opts...)...)
	return h
}

func (h *harness) do(conn domain.ConnID, action app.Action) error {
	return h.orch.Handle(h.ctx, conn, action)
}

func (h *harness) must(conn domain.ConnID, action app.Action) {
	h.t.Helper()
	require.NoError(h.t, h.do(conn, action))
}

// lobby creates room code administered by admin, joins players in order and uploads quiz.
func (h *harness) lobby(code string, admin domain.ConnID, quiz domain.Quiz, players ...domain.ConnID) {
	h.t.Helper()
	h.must(admin, app.CreateRoom{RequestedCode: code})
	for _, p := range players {
		h.must(p, app.JoinRoom{RoomCode: code, Username: string(p)})
	}
	h.must(admin, app.UploadQuiz{RoomCode: code, Quiz: quiz})
}

func (h *harness) answer(conn domain.ConnID, code string, slot int) error {
	return h.do(conn, app.SubmitAnswer{RoomCode: code, AnswerIndex: slot, Timestamp: h.clock.Now()})
}

func (h *harness) waitCount(conn domain.ConnID, typ string, n int) {
	h.t.Helper()
	require.Eventuallyf(h.t, func() bool { return h.outbox.count(conn, typ) >= n }, waitFor, tick,
		"waiting for %d %s events to %s; got %v", n, typ, conn, h.outbox.types(conn))
}

func twoQuestionQuiz() domain.Quiz {
	return domain.Quiz{
		ID:              "capitals",
		Title:           "Capitals",
		TimePerQuestion: 30,
		Questions: []domain.Question{
			{Text: "Capital of France?", Options: []string{"Berlin", "Paris", "Rome", "Madrid"}, CorrectAnswer: domain.IndexKey(1), Points: 10},
			{Text: "Capital of Italy?", Options: []string{"Rome", "Oslo", "Bern", "Vienna"}, CorrectAnswer: domain.ValueKey("Rome"), Points: 10},
		},
	}
}
