package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"elsa-quiz-room/internal/app"
	"elsa-quiz-room/internal/domain"
)

// Inbound frame types. Aliases are kept for older clients.
const (
	msgCreateRoom       = "create_room"
	msgJoinRoom         = "join_room"
	msgQuizDataUploaded = "quizDataUploaded"
	msgQuizDataCreated  = "quizDataCreated"
	msgLoadQuiz         = "load_quiz"
	msgStartQuiz        = "start_quiz"
	msgSubmitAnswer     = "submitAnswer"
	msgSubmitAnswerAlt  = "submit_answer"
	msgNextQuestion     = "nextQuestion"
)

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type createRoomPayload struct {
	RequestedCode string `json:"requestedCode"`
}

type joinRoomPayload struct {
	RoomCode string `json:"roomCode"`
	Username string `json:"username"`
}

type quizUploadPayload struct {
	RoomCode string          `json:"roomCode"`
	QuizData json.RawMessage `json:"quizData"`
}

type loadQuizPayload struct {
	RoomCode string `json:"roomCode"`
	QuizID   string `json:"quizId"`
}

type roomPayload struct {
	RoomCode string `json:"roomCode"`
}

// submitAnswerPayload carries either the shown slot or, from older clients,
// the chosen option text.
type submitAnswerPayload struct {
	RoomCode    string  `json:"roomCode"`
	AnswerIndex *int    `json:"answerIndex"`
	Answer      *string `json:"answer"`
	Timestamp   int64   `json:"timestamp"`
}

// decodeAction turns one websocket frame into an orchestrator action.
func decodeAction(raw []byte) (app.Action, error) {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, badRequest("frame is not a JSON message: %v", err)
	}

	switch msg.Type {
	case msgCreateRoom:
		var p createRoomPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return nil, err
		}
		return app.CreateRoom{RequestedCode: p.RequestedCode}, nil

	case msgJoinRoom:
		var p joinRoomPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return nil, err
		}
		if p.RoomCode == "" {
			return nil, badRequest("roomCode is required")
		}
		return app.JoinRoom{RoomCode: p.RoomCode, Username: p.Username}, nil

	case msgQuizDataUploaded, msgQuizDataCreated:
		var p quizUploadPayload
		quizData := msg.Payload
		// the quiz may come wrapped in {roomCode, quizData} or as the payload itself
		if trimmed := bytes.TrimSpace(msg.Payload); len(trimmed) > 0 && trimmed[0] == '{' {
			if err := json.Unmarshal(trimmed, &p); err != nil {
				return nil, badRequest("invalid %s payload: %v", msg.Type, err)
			}
			if len(p.QuizData) > 0 {
				quizData = p.QuizData
			}
		}
		quiz, err := domain.ParseQuiz(quizData)
		if err != nil {
			return nil, err
		}
		return app.UploadQuiz{RoomCode: p.RoomCode, Quiz: quiz}, nil

	case msgLoadQuiz:
		var p loadQuizPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return nil, err
		}
		if p.QuizID == "" {
			return nil, badRequest("quizId is required")
		}
		return app.LoadQuiz{RoomCode: p.RoomCode, QuizID: p.QuizID}, nil

	case msgStartQuiz:
		code, err := decodeRoomCode(msg.Payload)
		if err != nil {
			return nil, err
		}
		return app.StartQuiz{RoomCode: code}, nil

	case msgNextQuestion:
		code, err := decodeRoomCode(msg.Payload)
		if err != nil {
			return nil, err
		}
		return app.NextQuestion{RoomCode: code}, nil

	case msgSubmitAnswer, msgSubmitAnswerAlt:
		var p submitAnswerPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return nil, err
		}
		var ts time.Time
		if p.Timestamp > 0 {
			ts = time.UnixMilli(p.Timestamp)
		}
		switch {
		case p.AnswerIndex != nil:
			return app.SubmitAnswer{RoomCode: p.RoomCode, AnswerIndex: *p.AnswerIndex, Timestamp: ts}, nil
		case p.Answer != nil:
			return app.SubmitAnswer{RoomCode: p.RoomCode, ByValue: true, Value: *p.Answer, Timestamp: ts}, nil
		default:
			return nil, badRequest("answerIndex or answer is required")
		}

	case "":
		return nil, badRequest("message type is required")
	default:
		return nil, badRequest("unsupported message type %q", msg.Type)
	}
}

// decodeRoomCode accepts a bare "CODE" string or {roomCode}.
func decodeRoomCode(raw json.RawMessage) (string, error) {
	var code string
	if err := json.Unmarshal(raw, &code); err == nil {
		return code, nil
	}
	var p roomPayload
	if err := decodePayload(raw, &p); err != nil {
		return "", err
	}
	return p.RoomCode, nil
}

// decodePayload accepts a missing or null payload as the zero value.
func decodePayload(raw json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return badRequest("invalid payload: %v", err)
	}
	return nil
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrBadRequest, fmt.Sprintf(format, args...))
}
