package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"elsa-quiz-room/internal/domain"
	"github.com/go-chi/chi/v5"
)

// RoomLookup exposes public room summaries.
type RoomLookup interface {
	RoomInfo(code string) (domain.RoomInfo, error)
}

// QuizLibrary serves stored quizzes.
type QuizLibrary interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// ResultHistory lists archived results of a quiz.
type ResultHistory interface {
	RecentResults(ctx context.Context, quizID string, limit int) ([]domain.FinalReport, error)
}

// APIHandler serves the read-only JSON endpoints next to the websocket.
// quizzes and results may be nil when no library or archive is configured.
type APIHandler struct {
	rooms   RoomLookup
	quizzes QuizLibrary
	results ResultHistory
	logger  *slog.Logger
}

func NewAPIHandler(logger *slog.Logger, rooms RoomLookup, quizzes QuizLibrary, results ResultHistory) *APIHandler {
	return &APIHandler{rooms: rooms, quizzes: quizzes, results: results, logger: logger}
}

func (h *APIHandler) handleExample(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, domain.ExampleQuiz())
}

func (h *APIHandler) handleRoom(w http.ResponseWriter, r *http.Request) {
	info, err := h.rooms.RoomInfo(chi.URLParam(r, "code"))
	if errors.Is(err, domain.ErrRoomNotFound) {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}
	if err != nil {
		h.logger.Error("room lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *APIHandler) handleQuiz(w http.ResponseWriter, r *http.Request) {
	if h.quizzes == nil {
		writeError(w, http.StatusNotFound, "quiz not found")
		return
	}
	quizID := chi.URLParam(r, "quizID")
	quiz, err := h.quizzes.GetQuiz(r.Context(), quizID)
	if errors.Is(err, domain.ErrQuizNotFound) {
		writeError(w, http.StatusNotFound, "quiz not found")
		return
	}
	if err != nil {
		h.logger.Error("quiz lookup failed", "quiz", quizID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, quiz.Preview())
}

func (h *APIHandler) handleResults(w http.ResponseWriter, r *http.Request) {
	if h.results == nil {
		writeError(w, http.StatusNotFound, "results archive not configured")
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}
	quizID := chi.URLParam(r, "quizID")
	reports, err := h.results.RecentResults(r.Context(), quizID, limit)
	if err != nil {
		h.logger.Error("results lookup failed", "quiz", quizID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, reports)
}
