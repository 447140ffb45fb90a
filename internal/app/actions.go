package app

import (
	"time"

	"elsa-quiz-room/internal/domain"
)

// Action is an inbound client request. Each concrete type is one variant.
type Action interface {
	Name() string
}

// CreateRoom opens a new room administered by the sender.
type CreateRoom struct {
	RequestedCode string
}

// JoinRoom adds the sender to a lobby room as a player.
type JoinRoom struct {
	RoomCode string
	Username string
}

// UploadQuiz replaces the room's quiz while it is in the lobby.
type UploadQuiz struct {
	RoomCode string
	Quiz     domain.Quiz
}

// LoadQuiz replaces the room's quiz with one from the quiz library.
type LoadQuiz struct {
	RoomCode string
	QuizID   string
}

// StartQuiz moves the room from lobby to running and sends the first question.
type StartQuiz struct {
	RoomCode string
}

// SubmitAnswer answers the current question. AnswerIndex is the slot in the
// shuffled options the sender was shown; a zero Timestamp means "now".
// Older clients send the option text instead, which sets ByValue and Value.
type SubmitAnswer struct {
	RoomCode    string
	AnswerIndex int
	ByValue     bool
	Value       string
	Timestamp   time.Time
}

// NextQuestion lets the admin move on without waiting for every answer.
type NextQuestion struct {
	RoomCode string
}

func (CreateRoom) Name() string   { return "create_room" }
func (JoinRoom) Name() string     { return "join_room" }
func (UploadQuiz) Name() string   { return "upload_quiz" }
func (LoadQuiz) Name() string     { return "load_quiz" }
func (StartQuiz) Name() string    { return "start_quiz" }
func (SubmitAnswer) Name() string { return "submit_answer" }
func (NextQuestion) Name() string { return "next_question" }
