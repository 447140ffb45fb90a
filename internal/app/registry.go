package app

import (
	"math/rand"
	"strings"
	"time"

	"elsa-quiz-room/internal/domain"
)

// RoomRepository abstracts where live rooms are kept (in-memory, Redis-backed, etc).
type RoomRepository interface {
	// Claim stores room under code unless the code is already taken.
	Claim(code string, room *Room) bool
	Get(code string) (*Room, bool)
	Delete(code string)
	Len() int
}

const (
	// DefaultCodeLength is the length of generated room codes.
	DefaultCodeLength = 6
	codeAlphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxCodeAttempts   = 1000
)

// RandomCode returns a generator of random alphanumeric codes of the given length.
func RandomCode(length int) func() string {
	if length <= 0 {
		length = DefaultCodeLength
	}
	return func() string {
		b := make([]byte, length)
		for i := range b {
			b[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
		}
		return string(b)
	}
}

// RoomRegistry owns the set of live rooms keyed by normalized room code.
type RoomRegistry struct {
	rooms    RoomRepository
	generate func() string
	now      func() time.Time
}

// NewRoomRegistry builds a registry over a repository. A nil generator uses RandomCode(DefaultCodeLength).
func NewRoomRegistry(rooms RoomRepository, generate func() string) *RoomRegistry {
	if generate == nil {
		generate = RandomCode(DefaultCodeLength)
	}
	return &RoomRegistry{rooms: rooms, generate: generate, now: time.Now}
}

// NormalizeCode makes room codes case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func validCode(code string) bool {
	if code == "" || len(code) > 16 {
		return false
	}
	for _, c := range code {
		if !strings.ContainsRune(codeAlphabet, c) {
			return false
		}
	}
	return true
}

// CreateRoom registers a new lobby room administered by admin. The requested
// code is used when it is valid and free; otherwise codes are generated until
// a free one is found.
func (r *RoomRegistry) CreateRoom(requested string, admin domain.ConnID) (*Room, error) {
	if code := NormalizeCode(requested); validCode(code) {
		room := newRoom(code, admin, r.now())
		if r.rooms.Claim(code, room) {
			return room, nil
		}
	}
	for i := 0; i < maxCodeAttempts; i++ {
		code := NormalizeCode(r.generate())
		room := newRoom(code, admin, r.now())
		if r.rooms.Claim(code, room) {
			return room, nil
		}
	}
	return nil, domain.ErrCodeSpaceExhausted
}

// GetRoom looks up a live room.
func (r *RoomRegistry) GetRoom(code string) (*Room, error) {
	room, ok := r.rooms.Get(NormalizeCode(code))
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}

// RemoveRoom deletes the room registered under code. It is idempotent.
func (r *RoomRegistry) RemoveRoom(code string) {
	room, ok := r.rooms.Get(NormalizeCode(code))
	if !ok {
		return
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	r.removeLocked(room)
}

func (r *RoomRegistry) removeLocked(room *Room) {
	if room.removed {
		return
	}
	room.removed = true
	if room.advanceTimer != nil {
		room.advanceTimer.Stop()
		room.advanceTimer = nil
	}
	if current, ok := r.rooms.Get(room.code); ok && current == room {
		r.rooms.Delete(room.code)
	}
}

// DropPlayer removes a player from room and removes the room once no players
// are left. It reports whether the player was present and whether the room
// was removed. The caller must hold room.mu.
func (r *RoomRegistry) DropPlayer(room *Room, id domain.ConnID) (removed bool, roomRemoved bool) {
	removed = room.removePlayer(id)
	if removed && len(room.players) == 0 {
		r.removeLocked(room)
		return true, true
	}
	return removed, false
}

// Len reports the number of live rooms.
func (r *RoomRegistry) Len() int {
	return r.rooms.Len()
}
