package redis

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"elsa-quiz-room/internal/app"
	"github.com/redis/go-redis/v9"
)

const opTimeout = 2 * time.Second

// releaseScript deletes a reservation only while it still holds our token, so a
// late release never drops a code that expired and was claimed again.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RoomStore is a Redis-aware implementation of app.RoomRepository.
// Notes:
//   - Room state stays in a local map; events are fanned out in-process.
//   - Redis reserves room codes (SET NX with a TTL) so instances sharing a
//     Redis never hand out the same code twice.
//   - When Redis is unreachable the store degrades to local-only reservation.
//   - mu never covers a Redis round trip: lookups in one room must not wait on
//     the network because another room is being created or deleted.
type RoomStore struct {
	client *redis.Client
	ttl    time.Duration
	owner  string
	log    *slog.Logger

	seq      atomic.Uint64
	releases sync.WaitGroup

	mu    sync.RWMutex
	rooms map[string]reservation
}

type reservation struct {
	room  *app.Room
	token string
}

// NewRoomStore creates a store. owner prefixes every reservation value so
// operators can tell which instance holds a code.
func NewRoomStore(client *redis.Client, ttl time.Duration, owner string, log *slog.Logger) *RoomStore {
	if log == nil {
		log = slog.Default()
	}
	return &RoomStore{
		client: client,
		ttl:    ttl,
		owner:  owner,
		log:    log,
		rooms:  make(map[string]reservation),
	}
}

func (s *RoomStore) Claim(code string, room *app.Room) bool {
	s.mu.RLock()
	_, taken := s.rooms[code]
	s.mu.RUnlock()
	if taken {
		return false
	}

	token := s.owner + ":" + strconv.FormatUint(s.seq.Add(1), 10)
	reserved := true
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	ok, err := s.client.SetNX(ctx, s.key(code), token, s.ttl).Result()
	cancel()
	if err != nil {
		s.log.Warn("redis code reservation failed, reserving locally", "room", code, "error", err)
		reserved = false
	} else if !ok {
		return false
	}

	s.mu.Lock()
	if _, taken := s.rooms[code]; taken {
		s.mu.Unlock()
		if reserved {
			s.release(code, token)
		}
		return false
	}
	s.rooms[code] = reservation{room: room, token: token}
	s.mu.Unlock()
	return true
}

func (s *RoomStore) Get(code string) (*app.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[code]
	return r.room, ok
}

// Delete drops the room locally and releases its reservation in the
// background. Callers may hold a room lock.
func (s *RoomStore) Delete(code string) {
	s.mu.Lock()
	r, ok := s.rooms[code]
	delete(s.rooms, code)
	s.mu.Unlock()
	if ok {
		s.release(code, r.token)
	}
}

func (s *RoomStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// Drain blocks until every pending release has reached Redis or timed out.
func (s *RoomStore) Drain() {
	s.releases.Wait()
}

func (s *RoomStore) release(code, token string) {
	s.releases.Add(1)
	go func() {
		defer s.releases.Done()
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		if err := releaseScript.Run(ctx, s.client, []string{s.key(code)}, token).Err(); err != nil {
			s.log.Warn("redis code release failed", "room", code, "error", err)
		}
	}()
}

// Refresh extends the reservation of every local room. Long quizzes outlive
// the reservation TTL otherwise.
func (s *RoomStore) Refresh(ctx context.Context) error {
	s.mu.RLock()
	codes := make([]string, 0, len(s.rooms))
	for code := range s.rooms {
		codes = append(codes, code)
	}
	s.mu.RUnlock()
	if len(codes) == 0 || s.ttl <= 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, code := range codes {
		pipe.Expire(ctx, s.key(code), s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// KeepAlive calls Refresh every interval until ctx is done.
func (s *RoomStore) KeepAlive(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				s.log.Warn("refresh room reservations", "rooms", s.Len(), "error", err)
			}
		}
	}
}

func (s *RoomStore) key(code string) string {
	return "quiz:room:" + code
}
