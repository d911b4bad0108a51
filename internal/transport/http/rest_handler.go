package http

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"micro-quiz-service/internal/app"
)

const maxResultsLimit = 100

// RESTHandler serves the read-only quiz, attempt and result endpoints.
type RESTHandler struct {
	service      *app.AttemptService
	logger       zerolog.Logger
	defaultLimit int
}

func NewRESTHandler(service *app.AttemptService, logger zerolog.Logger, defaultLimit int) *RESTHandler {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &RESTHandler{
		service:      service,
		logger:       logger.With().Str("component", "rest").Logger(),
		defaultLimit: defaultLimit,
	}
}

// Register mounts the handler's routes on mux.
func (h *RESTHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /quizzes", h.ListQuizzes)
	mux.HandleFunc("GET /quizzes/{id}", h.GetQuiz)
	mux.HandleFunc("GET /attempts/{id}", h.GetAttempt)
	mux.HandleFunc("GET /results", h.RecentResults)
}

// ListQuizzes returns catalogue summaries, narrowed by the optional category
// query parameter.
func (h *RESTHandler) ListQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.service.Quizzes(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"quizzes": quizzes})
}

// GetQuiz returns a quiz without its answer key.
func (h *RESTHandler) GetQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := h.service.Quiz(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, quiz)
}

// GetAttempt returns the current snapshot of an attempt, including ones running
// on another instance when the session store mirrors them.
func (h *RESTHandler) GetAttempt(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Snapshot(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// RecentResults lists a user's latest completion records.
func (h *RESTHandler) RecentResults(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, "missing userId")
		return
	}

	limit := h.defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, CodeInvalidRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxResultsLimit)
	}

	results, err := h.service.RecentResults(r.Context(), userID, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (h *RESTHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, _ := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	respondServiceError(w, err)
}
