package domain

// Outbound event types. Names follow what existing clients listen for.
const (
	EventRoomCreated     = "room_created"
	EventRoomJoined      = "room_joined"
	EventRoomClosed      = "room_closed"
	EventPlayerJoined    = "player_joined"
	EventPlayerLeft      = "player_left"
	EventQuizReady       = "quiz_ready"
	EventQuizStarted     = "quizStarted"
	EventNextQuestion    = "nextQuestion"
	EventAnswerResult    = "answerResult"
	EventPlayerAnswered  = "playerAnswered"
	EventQuestionResults = "question_results"
	EventQuizResults     = "quizResults"
	EventUserData        = "userdata"
	EventAdminReport     = "adminReport"
	EventError           = "error"
)

// Event is a typed message sent to one connection.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type RoomCreatedPayload struct {
	RoomCode string `json:"roomCode"`
}

type RoomJoinedPayload struct {
	RoomCode string `json:"roomCode"`
	PlayerID ConnID `json:"playerId"`
	IsAdmin  bool   `json:"isAdmin"`
}

type RoomClosedPayload struct {
	RoomCode string `json:"roomCode"`
}

// RosterPayload is sent with player_joined and player_left.
type RosterPayload struct {
	PlayerID    ConnID          `json:"playerId"`
	PlayerCount int             `json:"playerCount"`
	Players     []PlayerSummary `json:"players"`
}

type QuizReadyPayload struct {
	Message        string `json:"message"`
	Title          string `json:"title,omitempty"`
	TotalQuestions int    `json:"totalQuestions"`
}

type QuizStartedPayload struct {
	TotalQuestions  int `json:"totalQuestions"`
	TimePerQuestion int `json:"timePerQuestion"`
}

// QuestionPayload is the client-safe view of a question: options are shuffled
// and the correct slot is not included.
type QuestionPayload struct {
	QuestionNumber int      `json:"questionNumber"`
	TotalQuestions int      `json:"totalQuestions"`
	Question       string   `json:"question"`
	Options        []string `json:"options"`
	Points         int      `json:"points"`
	TimeLimit      int      `json:"timeLimit"`
}

type AnswerResultPayload struct {
	Correct       bool `json:"correct"`
	Points        int  `json:"points"`
	CorrectAnswer int  `json:"correctAnswer"`
	NewScore      int  `json:"newScore"`
}

type PlayerAnsweredPayload struct {
	PlayerID      ConnID `json:"playerId"`
	PlayerName    string `json:"playerName"`
	AnsweredCount int    `json:"answeredCount"`
	PlayerCount   int    `json:"playerCount"`
}

type QuestionResultsPayload struct {
	QuestionNumber    int             `json:"questionNumber"`
	CorrectAnswer     int             `json:"correctAnswer"`
	CorrectAnswerText string          `json:"correctAnswerText"`
	Scores            []PlayerSummary `json:"scores"`
}

type QuizResultsPayload struct {
	Results []PlayerResult `json:"results"`
	Winner  *PlayerResult  `json:"winner"`
}

type UserDataEntry struct {
	Username string `json:"username"`
	Score    int    `json:"score"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
