package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"elsa-quiz-room/internal/domain"
	"github.com/samber/lo"
)

// Outbox delivers events to single connections. Delivery is best effort and
// must not block.
type Outbox interface {
	Send(conn domain.ConnID, evt domain.Event)
}

// QuizRepository loads stored quizzes (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// ResultSink archives the report of a finished room.
type ResultSink interface {
	SaveResults(ctx context.Context, report domain.FinalReport) error
}

// DefaultRevealDelay is how long answers stay on screen before the next question.
const DefaultRevealDelay = 2 * time.Second

const archiveTimeout = 10 * time.Second

// Orchestrator binds client actions to room state and fans events out to room members.
type Orchestrator struct {
	rooms       *RoomRegistry
	outbox      Outbox
	quizzes     QuizRepository
	results     ResultSink
	dispatcher  *Dispatcher
	now         func() time.Time
	revealDelay time.Duration
	log         *slog.Logger

	mu    sync.Mutex
	conns map[domain.ConnID]string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithQuizRepository enables loading quizzes from a library.
func WithQuizRepository(quizzes QuizRepository) Option {
	return func(o *Orchestrator) { o.quizzes = quizzes }
}

// WithResultSink archives final reports.
func WithResultSink(sink ResultSink) Option {
	return func(o *Orchestrator) { o.results = sink }
}

// WithDispatcher overrides how questions are shuffled.
func WithDispatcher(d *Dispatcher) Option {
	return func(o *Orchestrator) { o.dispatcher = d }
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithRevealDelay sets the pause between a question's results and the next question.
func WithRevealDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.revealDelay = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

func NewOrchestrator(rooms *RoomRegistry, outbox Outbox, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		rooms:       rooms,
		outbox:      outbox,
		dispatcher:  NewDispatcher(),
		now:         time.Now,
		revealDelay: DefaultRevealDelay,
		log:         slog.Default(),
		conns:       make(map[domain.ConnID]string),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Handle applies one action from conn. Rejected actions are reported to conn
// as an error event and returned.
func (o *Orchestrator) Handle(ctx context.Context, conn domain.ConnID, action Action) error {
	var err error
	switch a := action.(type) {
	case CreateRoom:
		err = o.createRoom(conn, a)
	case JoinRoom:
		err = o.joinRoom(conn, a)
	case UploadQuiz:
		err = o.uploadQuiz(conn, a.RoomCode, a.Quiz)
	case LoadQuiz:
		err = o.loadQuiz(ctx, conn, a)
	case StartQuiz:
		err = o.startQuiz(conn, a)
	case SubmitAnswer:
		err = o.submitAnswer(conn, a)
	case NextQuestion:
		err = o.nextQuestion(conn, a)
	default:
		err = fmt.Errorf("%w: unsupported action %T", domain.ErrBadRequest, action)
	}
	if err != nil {
		if domain.ErrorCode(err) == "Internal" {
			o.log.Error("action failed", "conn", conn, "action", actionName(action), "error", err)
		} else {
			o.log.Debug("action rejected", "conn", conn, "action", actionName(action), "error", err)
		}
		o.outbox.Send(conn, domain.ErrorEvent(err))
	}
	return err
}

func actionName(a Action) string {
	if a == nil {
		return "<nil>"
	}
	return a.Name()
}

// Disconnect removes conn from its room. The room is deleted once its last
// player is gone; an admin leaving a room that still has players keeps it alive.
func (o *Orchestrator) Disconnect(_ context.Context, conn domain.ConnID) {
	o.mu.Lock()
	code, ok := o.conns[conn]
	delete(o.conns, conn)
	o.mu.Unlock()
	if !ok {
		return
	}

	room, err := o.rooms.GetRoom(code)
	if err != nil {
		return
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	if room.removed {
		return
	}

	if room.isAdmin(conn) {
		room.adminConnected = false
		o.log.Info("admin disconnected", "room", room.code, "players", len(room.players))
		if len(room.players) == 0 {
			o.rooms.removeLocked(room)
			o.log.Info("room deleted", "room", room.code, "reason", "empty")
		}
		return
	}

	dropped, roomRemoved := o.rooms.DropPlayer(room, conn)
	if !dropped {
		return
	}
	if roomRemoved {
		if room.adminConnected {
			o.outbox.Send(room.adminID, domain.Event{Type: domain.EventRoomClosed, Payload: domain.RoomClosedPayload{RoomCode: room.code}})
			o.unbind(room.adminID, room.code)
		}
		o.log.Info("room deleted", "room", room.code, "reason", "empty")
		return
	}

	o.broadcastLocked(room, domain.Event{Type: domain.EventPlayerLeft, Payload: domain.RosterPayload{
		PlayerID:    conn,
		PlayerCount: len(room.players),
		Players:     room.roster(),
	}})

	// The departed player may have been the only one left to answer.
	if room.status == domain.StatusRunning && room.dispatch != nil && room.allAnswered() {
		o.revealLocked(room)
	}
}

// RoomInfo returns the public summary of a live room.
func (o *Orchestrator) RoomInfo(code string) (domain.RoomInfo, error) {
	room, err := o.rooms.GetRoom(code)
	if err != nil {
		return domain.RoomInfo{}, err
	}
	return room.Info(), nil
}

func (o *Orchestrator) createRoom(conn domain.ConnID, a CreateRoom) error {
	if _, ok := o.liveRoomOf(conn); ok {
		return domain.ErrAlreadyInRoom
	}
	room, err := o.rooms.CreateRoom(a.RequestedCode, conn)
	if err != nil {
		return err
	}
	o.bind(conn, room.code)

	room.mu.Lock()
	defer room.mu.Unlock()
	o.outbox.Send(conn, domain.Event{Type: domain.EventRoomCreated, Payload: domain.RoomCreatedPayload{RoomCode: room.code}})
	o.log.Info("room created", "room", room.code, "admin", conn)
	return nil
}

func (o *Orchestrator) joinRoom(conn domain.ConnID, a JoinRoom) error {
	code := NormalizeCode(a.RoomCode)
	if current, ok := o.liveRoomOf(conn); ok && current != code {
		return domain.ErrAlreadyInRoom
	}
	room, err := o.rooms.GetRoom(code)
	if err != nil {
		return err
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	if room.removed {
		return domain.ErrRoomNotFound
	}

	if room.isAdmin(conn) {
		o.outbox.Send(conn, domain.Event{Type: domain.EventRoomJoined, Payload: domain.RoomJoinedPayload{
			RoomCode: room.code, PlayerID: conn, IsAdmin: true,
		}})
		return nil
	}

	player, err := room.addPlayer(conn, a.Username)
	if err != nil {
		return err
	}
	o.bind(conn, room.code)

	o.outbox.Send(conn, domain.Event{Type: domain.EventRoomJoined, Payload: domain.RoomJoinedPayload{
		RoomCode: room.code, PlayerID: conn,
	}})
	o.broadcastLocked(room, domain.Event{Type: domain.EventPlayerJoined, Payload: domain.RosterPayload{
		PlayerID:    conn,
		PlayerCount: len(room.players),
		Players:     room.roster(),
	}})
	o.log.Info("player joined", "room", room.code, "player", conn, "name", player.Name)
	return nil
}

func (o *Orchestrator) uploadQuiz(conn domain.ConnID, code string, quiz domain.Quiz) error {
	quiz = quiz.Clone()
	if err := quiz.Normalize(); err != nil {
		return err
	}
	room, err := o.resolve(conn, code)
	if err != nil {
		return err
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	if room.removed {
		return domain.ErrRoomNotFound
	}
	if !room.isAdmin(conn) {
		return domain.ErrNotAdmin
	}
	if err := room.setQuiz(quiz); err != nil {
		return err
	}

	o.broadcastLocked(room, domain.Event{Type: domain.EventQuizReady, Payload: domain.QuizReadyPayload{
		Message:        "Quiz loaded and ready!",
		Title:          quiz.Title,
		TotalQuestions: len(quiz.Questions),
	}})
	o.log.Info("quiz stored", "room", room.code, "quiz", quiz.ID, "questions", len(quiz.Questions))
	return nil
}

func (o *Orchestrator) loadQuiz(ctx context.Context, conn domain.ConnID, a LoadQuiz) error {
	if o.quizzes == nil {
		return domain.ErrQuizNotFound
	}
	quiz, err := o.quizzes.GetQuiz(ctx, a.QuizID)
	if err != nil {
		if errors.Is(err, domain.ErrQuizNotFound) {
			return err
		}
		return fmt.Errorf("load quiz %q: %w", a.QuizID, err)
	}
	return o.uploadQuiz(conn, a.RoomCode, quiz)
}

func (o *Orchestrator) startQuiz(conn domain.ConnID, a StartQuiz) error {
	room, err := o.resolve(conn, a.RoomCode)
	if err != nil {
		return err
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	if room.removed {
		return domain.ErrRoomNotFound
	}
	if !room.isAdmin(conn) {
		return domain.ErrNotAdmin
	}
	if err := room.start(); err != nil {
		return err
	}

	o.broadcastLocked(room, domain.Event{Type: domain.EventQuizStarted, Payload: domain.QuizStartedPayload{
		TotalQuestions:  room.totalQuestions(),
		TimePerQuestion: room.quiz.TimePerQuestion,
	}})
	o.log.Info("quiz started", "room", room.code, "players", len(room.players), "questions", room.totalQuestions())
	o.dispatchLocked(room)
	return nil
}

func (o *Orchestrator) submitAnswer(conn domain.ConnID, a SubmitAnswer) error {
	room, err := o.resolve(conn, a.RoomCode)
	if err != nil {
		return err
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	if room.removed {
		return domain.ErrRoomNotFound
	}
	if room.status != domain.StatusRunning || room.dispatch == nil {
		return domain.ErrQuizNotRunning
	}
	player, ok := room.player(conn)
	if !ok {
		return domain.ErrPlayerNotFound
	}
	if _, answered := player.AnswerFor(room.current); answered {
		return domain.ErrDuplicateAnswer
	}

	question, _ := room.currentQuestion()
	slot := a.AnswerIndex
	if a.ByValue {
		// text that matches no shown option scores as an out-of-range slot
		slot = lo.IndexOf(room.dispatch.Payload.Options, a.Value)
	}
	submittedAt := a.Timestamp
	if submittedAt.IsZero() {
		submittedAt = o.now()
	}
	budget := time.Duration(room.quiz.TimeLimit(room.current)) * time.Second
	out := Score(question.Points, *room.dispatch, slot, submittedAt, room.startedAt, budget)

	player.Score += out.Points
	player.Answers = append(player.Answers, domain.AnswerRecord{
		QuestionIndex: room.current,
		Answer:        slot,
		AnswerText:    room.dispatch.OptionAt(question, slot),
		Correct:       out.Correct,
		Points:        out.Points,
		TimeElapsed:   out.Elapsed.Seconds(),
	})

	o.outbox.Send(conn, domain.Event{Type: domain.EventAnswerResult, Payload: domain.AnswerResultPayload{
		Correct:       out.Correct,
		Points:        out.Points,
		CorrectAnswer: room.dispatch.Correct,
		NewScore:      player.Score,
	}})
	o.broadcastLocked(room, domain.Event{Type: domain.EventPlayerAnswered, Payload: domain.PlayerAnsweredPayload{
		PlayerID:      conn,
		PlayerName:    player.Name,
		AnsweredCount: room.answeredCount(),
		PlayerCount:   len(room.players),
	}})
	o.log.Debug("answer recorded", "room", room.code, "player", conn, "question", room.current+1, "correct", out.Correct, "points", out.Points)

	if room.allAnswered() {
		o.revealLocked(room)
	}
	return nil
}

// dispatchLocked sends the current question. An index outside the quiz is an
// invariant violation and finishes the room instead of leaving it stuck.
func (o *Orchestrator) dispatchLocked(room *Room) {
	question, ok := room.currentQuestion()
	if !ok {
		o.log.Error("question index out of range, finishing room", "room", room.code, "index", room.current, "total", room.totalQuestions())
		o.finishLocked(room)
		return
	}
	d := o.dispatcher.Prepare(question, room.current, room.totalQuestions(), room.quiz.TimeLimit(room.current))
	room.dispatch = &d
	room.revealed = false
	room.startedAt = o.now()
	o.broadcastLocked(room, domain.Event{Type: domain.EventNextQuestion, Payload: d.Payload})
}

// nextQuestion is the admin's way past a question some players never answer.
// Unrevealed results are shown first; the next question follows immediately.
func (o *Orchestrator) nextQuestion(conn domain.ConnID, a NextQuestion) error {
	room, err := o.resolve(conn, a.RoomCode)
	if err != nil {
		return err
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	if room.removed {
		return domain.ErrRoomNotFound
	}
	if !room.isAdmin(conn) {
		return domain.ErrNotAdmin
	}
	if room.status != domain.StatusRunning || room.dispatch == nil {
		return domain.ErrQuizNotRunning
	}

	if !room.revealed {
		room.revealed = true
		o.broadcastResultsLocked(room)
	}
	o.log.Info("question skipped by admin", "room", room.code, "question", room.current+1,
		"answered", room.answeredCount(), "players", len(room.players))
	o.advanceLocked(room)
	return nil
}

func (o *Orchestrator) revealLocked(room *Room) {
	if room.revealed {
		return
	}
	room.revealed = true
	o.broadcastResultsLocked(room)

	index := room.current
	room.advanceTimer = time.AfterFunc(o.revealDelay, func() { o.advance(room, index) })
}

func (o *Orchestrator) broadcastResultsLocked(room *Room) {
	question, _ := room.currentQuestion()

	o.broadcastLocked(room, domain.Event{Type: domain.EventQuestionResults, Payload: domain.QuestionResultsPayload{
		QuestionNumber:    room.current + 1,
		CorrectAnswer:     room.dispatch.Correct,
		CorrectAnswerText: question.CorrectText(),
		Scores:            summaries(room.ranking()),
	}})
}

// advance runs when the reveal delay of question index has elapsed. It is a
// no-op if the room was deleted or has moved on in the meantime.
func (o *Orchestrator) advance(room *Room, index int) {
	live, err := o.rooms.GetRoom(room.code)
	if err != nil || live != room {
		return
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	if room.removed || room.status != domain.StatusRunning || room.current != index || !room.revealed {
		return
	}
	o.advanceLocked(room)
}

// advanceLocked drops the current dispatch and sends the next question, or
// finishes the room after the last one.
func (o *Orchestrator) advanceLocked(room *Room) {
	if room.advanceTimer != nil {
		room.advanceTimer.Stop()
		room.advanceTimer = nil
	}
	room.dispatch = nil

	if room.current+1 < room.totalQuestions() {
		room.current++
		o.dispatchLocked(room)
		return
	}
	o.finishLocked(room)
}

func (o *Orchestrator) finishLocked(room *Room) {
	room.finish()
	ranked := room.ranking()

	results := lo.Map(ranked, func(p *domain.Player, _ int) domain.PlayerResult {
		return domain.PlayerResult{ID: p.ID, Name: p.Name, Score: p.Score, Answers: slices.Clone(p.Answers)}
	})
	var winner *domain.PlayerResult
	if len(results) > 0 {
		w := results[0]
		winner = &w
	}

	o.broadcastLocked(room, domain.Event{Type: domain.EventQuizResults, Payload: domain.QuizResultsPayload{
		Results: results,
		Winner:  winner,
	}})
	o.broadcastLocked(room, domain.Event{Type: domain.EventUserData, Payload: lo.Map(ranked, func(p *domain.Player, _ int) domain.UserDataEntry {
		return domain.UserDataEntry{Username: p.Name, Score: p.Score}
	})})

	report := adminReport(room, ranked)
	if room.adminConnected {
		o.outbox.Send(room.adminID, domain.Event{Type: domain.EventAdminReport, Payload: report})
	}
	o.log.Info("quiz finished", "room", room.code, "players", len(ranked))

	o.archive(room, results, report)
}

func (o *Orchestrator) archive(room *Room, results []domain.PlayerResult, report []domain.PlayerReport) {
	if o.results == nil {
		return
	}
	final := domain.FinalReport{
		RoomCode:   room.code,
		FinishedAt: o.now().UnixMilli(),
		Results:    results,
		Report:     report,
	}
	if room.quiz != nil {
		final.QuizID = room.quiz.ID
		final.Title = room.quiz.Title
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := o.results.SaveResults(ctx, final); err != nil {
			o.log.Error("archive results failed", "room", final.RoomCode, "error", err)
		}
	}()
}

func adminReport(room *Room, ranked []*domain.Player) []domain.PlayerReport {
	var questions []domain.Question
	if room.quiz != nil {
		questions = room.quiz.Questions
	}
	return lo.Map(ranked, func(p *domain.Player, _ int) domain.PlayerReport {
		rows := make([]domain.QuestionReport, 0, len(questions))
		for i, q := range questions {
			row := domain.QuestionReport{
				QuestionNumber: i + 1,
				Question:       q.Text,
				CorrectAnswer:  q.CorrectText(),
				PlayerAnswer:   "No answer",
			}
			if rec, ok := p.AnswerFor(i); ok {
				row.PlayerAnswer = rec.AnswerText
				if row.PlayerAnswer == "" {
					row.PlayerAnswer = fmt.Sprintf("option %d", rec.Answer)
				}
				row.IsCorrect = rec.Correct
			}
			rows = append(rows, row)
		}
		return domain.PlayerReport{
			Username:       p.Name,
			Score:          p.Score,
			TotalQuestions: len(questions),
			Questions:      rows,
		}
	})
}

func summaries(players []*domain.Player) []domain.PlayerSummary {
	return lo.Map(players, func(p *domain.Player, _ int) domain.PlayerSummary {
		return domain.PlayerSummary{ID: p.ID, Name: p.Name, Score: p.Score}
	})
}

func (o *Orchestrator) broadcastLocked(room *Room, evt domain.Event) {
	for _, id := range room.recipients() {
		o.outbox.Send(id, evt)
	}
}

// resolve finds the room an action targets; an empty code means the sender's own room.
func (o *Orchestrator) resolve(conn domain.ConnID, code string) (*Room, error) {
	if code == "" {
		current, ok := o.roomOf(conn)
		if !ok {
			return nil, domain.ErrRoomNotFound
		}
		code = current
	}
	return o.rooms.GetRoom(code)
}

func (o *Orchestrator) roomOf(conn domain.ConnID) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	code, ok := o.conns[conn]
	return code, ok
}

// liveRoomOf is roomOf that forgets bindings to rooms that no longer exist.
// A connection still bound to a finished room leaves it, so it can create or
// join the next room without reconnecting.
func (o *Orchestrator) liveRoomOf(conn domain.ConnID) (string, bool) {
	code, ok := o.roomOf(conn)
	if !ok {
		return "", false
	}
	room, err := o.rooms.GetRoom(code)
	if err != nil {
		o.unbind(conn, code)
		return "", false
	}
	if room.Status() == domain.StatusFinished {
		o.Disconnect(context.Background(), conn)
		return "", false
	}
	return code, true
}

func (o *Orchestrator) bind(conn domain.ConnID, code string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.conns[conn] = code
}

func (o *Orchestrator) unbind(conn domain.ConnID, code string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.conns[conn] == code {
		delete(o.conns, conn)
	}
}
