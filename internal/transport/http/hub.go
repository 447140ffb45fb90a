package http

import (
	"log/slog"
	"sync"

	"elsa-quiz-room/internal/domain"
)

// DefaultSendBuffer is the number of events queued per connection before new ones are dropped.
const DefaultSendBuffer = 64

// Hub owns the outbound queue of every live connection and implements app.Outbox.
type Hub struct {
	buffer int
	log    *slog.Logger

	mu      sync.RWMutex
	clients map[domain.ConnID]chan domain.Event
}

func NewHub(buffer int, log *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		buffer:  buffer,
		log:     log,
		clients: make(map[domain.ConnID]chan domain.Event),
	}
}

// Register opens a queue for id. The returned channel is closed by Unregister.
func (h *Hub) Register(id domain.ConnID) <-chan domain.Event {
	ch := make(chan domain.Event, h.buffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.clients[id]; ok {
		close(old)
	}
	h.clients[id] = ch
	return ch
}

// Unregister closes the queue of id. Safe to call more than once.
func (h *Hub) Unregister(id domain.ConnID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.clients[id]; ok {
		close(ch)
		delete(h.clients, id)
	}
}

// Send enqueues evt for id without blocking. Events for unknown connections and
// for connections whose queue is full are dropped.
func (h *Hub) Send(id domain.ConnID, evt domain.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ch, ok := h.clients[id]
	if !ok {
		return
	}
	select {
	case ch <- evt:
	default:
		h.log.Warn("send queue full, dropping event", "conn", id, "type", evt.Type)
	}
}

// Len reports the number of registered connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
