package domain

import "errors"

var (
	// ErrRoomNotFound is returned when no live room matches a code.
	ErrRoomNotFound = errors.New("room not found")
	// ErrAlreadyStarted is returned when joining or changing a room past its lobby.
	ErrAlreadyStarted = errors.New("quiz already started")
	// ErrInvalidStart is returned when a quiz cannot be started (no quiz, no questions, or already running).
	ErrInvalidStart = errors.New("quiz cannot be started")
	// ErrDuplicateAnswer is returned when a player answers the same question twice.
	ErrDuplicateAnswer = errors.New("answer already submitted for this question")
	// ErrPlayerNotFound is returned when a connection acts in a room it has not joined as a player.
	ErrPlayerNotFound = errors.New("player not found in room")
	// ErrNotAdmin is returned when a non-admin connection attempts an admin action.
	ErrNotAdmin = errors.New("only the room admin can do that")
	// ErrQuizNotRunning is returned when answers arrive outside a running quiz.
	ErrQuizNotRunning = errors.New("quiz is not running")
	// ErrInvalidQuiz indicates a quiz definition failed validation.
	ErrInvalidQuiz = errors.New("invalid quiz definition")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrAlreadyInRoom is returned when a connection tries to enter a second room.
	ErrAlreadyInRoom = errors.New("connection already belongs to a room")
	// ErrBadRequest indicates a malformed client message.
	ErrBadRequest = errors.New("malformed request")
	// ErrCodeSpaceExhausted is returned when no free room code could be generated.
	ErrCodeSpaceExhausted = errors.New("could not allocate a room code")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrRoomNotFound, "RoomNotFound"},
	{ErrAlreadyStarted, "AlreadyStarted"},
	{ErrInvalidStart, "InvalidStart"},
	{ErrDuplicateAnswer, "DuplicateAnswer"},
	{ErrPlayerNotFound, "PlayerNotFound"},
	{ErrNotAdmin, "NotAdmin"},
	{ErrQuizNotRunning, "QuizNotRunning"},
	{ErrInvalidQuiz, "InvalidQuiz"},
	{ErrQuizNotFound, "QuizNotFound"},
	{ErrAlreadyInRoom, "AlreadyInRoom"},
	{ErrBadRequest, "BadRequest"},
}

// ErrorCode maps an error to the code clients see in error events.
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "Internal"
}

// ErrorEvent builds the error event delivered to the offending connection.
// Unknown errors are reported with a generic message so internals do not leak.
func ErrorEvent(err error) Event {
	code := ErrorCode(err)
	msg := err.Error()
	if code == "Internal" {
		msg = "internal error"
	}
	return Event{Type: EventError, Payload: ErrorPayload{Code: code, Message: msg}}
}
