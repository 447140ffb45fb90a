package domain

// ConnID identifies a single client connection. A reconnecting client gets a new ConnID.
type ConnID string

// Status is the lifecycle stage of a room's quiz session.
type Status string

const (
	StatusLobby    Status = "lobby"
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
)

const (
	// DefaultPoints is awarded for a correct answer when a question sets none.
	DefaultPoints = 10
	// DefaultTimePerQuestion is the time budget in seconds when a quiz sets none.
	DefaultTimePerQuestion = 30
	// OptionCount is the number of options every question carries.
	OptionCount = 4
)

// Player is a non-admin member of a room and their answer ledger.
type Player struct {
	ID        ConnID         `json:"id"`
	Name      string         `json:"name"`
	Score     int            `json:"score"`
	Answers   []AnswerRecord `json:"answers"`
	JoinOrder int            `json:"-"`
}

// AnswerRecord is one ledger entry: a player's answer to one question.
type AnswerRecord struct {
	QuestionIndex int     `json:"questionIndex"`
	Answer        int     `json:"answer"`
	AnswerText    string  `json:"answerText,omitempty"`
	Correct       bool    `json:"correct"`
	Points        int     `json:"points"`
	TimeElapsed   float64 `json:"timeElapsed"`
}

// AnswerFor returns the ledger entry for a question index, if any.
func (p *Player) AnswerFor(questionIndex int) (AnswerRecord, bool) {
	for _, a := range p.Answers {
		if a.QuestionIndex == questionIndex {
			return a, true
		}
	}
	return AnswerRecord{}, false
}

// PlayerSummary is the roster view of a player.
type PlayerSummary struct {
	ID    ConnID `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// PlayerResult is a player's final standing, including their ledger.
type PlayerResult struct {
	ID      ConnID         `json:"id"`
	Name    string         `json:"name"`
	Score   int            `json:"score"`
	Answers []AnswerRecord `json:"answers"`
}

// QuestionReport compares one player's answer with the correct one.
type QuestionReport struct {
	QuestionNumber int    `json:"questionNumber"`
	Question       string `json:"question"`
	CorrectAnswer  string `json:"correctAnswer"`
	PlayerAnswer   string `json:"playerAnswer"`
	IsCorrect      bool   `json:"isCorrect"`
}

// PlayerReport is the admin's per-player breakdown.
type PlayerReport struct {
	Username       string           `json:"username"`
	Score          int              `json:"score"`
	TotalQuestions int              `json:"totalQuestions"`
	Questions      []QuestionReport `json:"questions"`
}

// FinalReport is what gets archived when a room finishes.
type FinalReport struct {
	RoomCode   string         `json:"roomCode"`
	QuizID     string         `json:"quizId,omitempty"`
	Title      string         `json:"title,omitempty"`
	FinishedAt int64          `json:"finishedAt"`
	Results    []PlayerResult `json:"results"`
	Report     []PlayerReport `json:"report"`
}

// RoomInfo is the public summary of a room.
type RoomInfo struct {
	RoomCode       string `json:"roomCode"`
	Status         Status `json:"status"`
	PlayerCount    int    `json:"playerCount"`
	TotalQuestions int    `json:"totalQuestions"`
	QuizReady      bool   `json:"quizReady"`
	CreatedAt      int64  `json:"createdAt"`
}
