package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"elsa-quiz-room/internal/app"
	"elsa-quiz-room/internal/domain"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	maxFrameSize = 1 << 20
	writeWait    = 10 * time.Second
)

// Sessions is the part of the orchestrator a websocket connection talks to.
type Sessions interface {
	Handle(ctx context.Context, conn domain.ConnID, action app.Action) error
	Disconnect(ctx context.Context, conn domain.ConnID)
}

type WSHandler struct {
	sessions Sessions
	hub      *Hub
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func NewWSHandler(sessions Sessions, hub *Hub, log *slog.Logger) *WSHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WSHandler{
		sessions: sessions,
		hub:      hub,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades HTTP requests to websockets and feeds every frame to the orchestrator.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameSize)

	id := domain.ConnID(uuid.NewString())
	events := h.hub.Register(id)
	log := h.log.With("conn", id)
	log.Debug("connection opened", "remote", r.RemoteAddr)

	// the writer is the only goroutine writing to conn
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for evt := range events {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(evt); err != nil {
				log.Debug("ws write error", "error", err)
				// keep draining so the hub never sees a stuck queue
				for range events {
				}
				return
			}
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	}()

	ctx := r.Context()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("ws read error", "error", err)
			}
			break
		}
		action, err := decodeAction(raw)
		if err != nil {
			if !errors.Is(err, domain.ErrInvalidQuiz) {
				log.Debug("malformed frame", "error", err)
			}
			h.hub.Send(id, domain.ErrorEvent(err))
			continue
		}
		_ = h.sessions.Handle(ctx, id, action)
	}

	h.sessions.Disconnect(context.WithoutCancel(ctx), id)
	h.hub.Unregister(id)
	<-writerDone
	log.Debug("connection closed")
}
