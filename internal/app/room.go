package app

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"elsa-quiz-room/internal/domain"
	"github.com/samber/lo"
)

// Room is the quiz session of one room code. All fields are guarded by mu and
// every orchestrator action holds mu for its whole read-modify-write.
type Room struct {
	mu sync.Mutex

	code           string
	createdAt      time.Time
	adminID        domain.ConnID
	adminConnected bool

	quiz    *domain.Quiz
	status  domain.Status
	players []*domain.Player
	joined  int

	current   int
	startedAt time.Time
	dispatch  *Dispatch
	revealed  bool

	advanceTimer *time.Timer
	removed      bool
}

func newRoom(code string, admin domain.ConnID, now time.Time) *Room {
	return &Room{
		code:           code,
		createdAt:      now,
		adminID:        admin,
		adminConnected: true,
		status:         domain.StatusLobby,
	}
}

// Code returns the room code.
func (r *Room) Code() string { return r.code }

// Status reports the current lifecycle stage.
func (r *Room) Status() domain.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Info returns a public summary of the room.
func (r *Room) Info() domain.RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	info := domain.RoomInfo{
		RoomCode:    r.code,
		Status:      r.status,
		PlayerCount: len(r.players),
		QuizReady:   r.quiz != nil,
		CreatedAt:   r.createdAt.UnixMilli(),
	}
	if r.quiz != nil {
		info.TotalQuestions = len(r.quiz.Questions)
	}
	return info
}

func (r *Room) isAdmin(id domain.ConnID) bool {
	return id == r.adminID
}

func (r *Room) player(id domain.ConnID) (*domain.Player, bool) {
	return lo.Find(r.players, func(p *domain.Player) bool { return p.ID == id })
}

func (r *Room) addPlayer(id domain.ConnID, name string) (*domain.Player, error) {
	if p, ok := r.player(id); ok {
		return p, nil
	}
	if r.status != domain.StatusLobby {
		return nil, domain.ErrAlreadyStarted
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Player %d", r.joined+1)
	}
	r.joined++
	p := &domain.Player{ID: id, Name: name, JoinOrder: r.joined}
	r.players = append(r.players, p)
	return p, nil
}

func (r *Room) removePlayer(id domain.ConnID) bool {
	before := len(r.players)
	r.players = slices.DeleteFunc(r.players, func(p *domain.Player) bool { return p.ID == id })
	return len(r.players) != before
}

func (r *Room) setQuiz(q domain.Quiz) error {
	if r.status != domain.StatusLobby {
		return domain.ErrAlreadyStarted
	}
	clone := q.Clone()
	r.quiz = &clone
	r.current = 0
	return nil
}

func (r *Room) start() error {
	if r.status != domain.StatusLobby || r.quiz == nil || len(r.quiz.Questions) == 0 {
		return domain.ErrInvalidStart
	}
	r.status = domain.StatusRunning
	r.current = 0
	return nil
}

func (r *Room) totalQuestions() int {
	if r.quiz == nil {
		return 0
	}
	return len(r.quiz.Questions)
}

func (r *Room) currentQuestion() (domain.Question, bool) {
	if r.quiz == nil || r.current < 0 || r.current >= len(r.quiz.Questions) {
		return domain.Question{}, false
	}
	return r.quiz.Questions[r.current], true
}

func (r *Room) answeredCount() int {
	return lo.CountBy(r.players, func(p *domain.Player) bool {
		_, ok := p.AnswerFor(r.current)
		return ok
	})
}

// allAnswered is false for an empty room so a room never reveals to nobody.
func (r *Room) allAnswered() bool {
	return len(r.players) > 0 && r.answeredCount() == len(r.players)
}

func (r *Room) finish() {
	r.status = domain.StatusFinished
	r.dispatch = nil
	if r.advanceTimer != nil {
		r.advanceTimer.Stop()
		r.advanceTimer = nil
	}
}

// ranking orders players by score, highest first, keeping join order on ties.
func (r *Room) ranking() []*domain.Player {
	ranked := slices.Clone(r.players)
	slices.SortStableFunc(ranked, func(a, b *domain.Player) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.JoinOrder, b.JoinOrder)
	})
	return ranked
}

func (r *Room) roster() []domain.PlayerSummary {
	return lo.Map(r.players, func(p *domain.Player, _ int) domain.PlayerSummary {
		return domain.PlayerSummary{ID: p.ID, Name: p.Name, Score: p.Score}
	})
}

// recipients lists every connection that receives room broadcasts.
func (r *Room) recipients() []domain.ConnID {
	ids := make([]domain.ConnID, 0, len(r.players)+1)
	if r.adminConnected {
		ids = append(ids, r.adminID)
	}
	for _, p := range r.players {
		if p.ID != r.adminID {
			ids = append(ids, p.ID)
		}
	}
	return ids
}
