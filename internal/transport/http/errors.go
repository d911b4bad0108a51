package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"micro-quiz-service/internal/domain"
)

// Error codes shared by the REST and WebSocket surfaces.
const (
	CodeInvalidRequest     = "invalid_request"
	CodeInvalidPayload     = "invalid_payload"
	CodeUnknownMessageType = "unknown_message_type"
	CodeUsageError         = "usage_error"
	CodeInvalidQuiz        = "invalid_quiz"
	CodeNotFound           = "not_found"
	CodeInternalError      = "internal_error"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// classify maps a service error to an HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrQuizNotFound), errors.Is(err, domain.ErrAttemptNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, domain.ErrUsage):
		return http.StatusConflict, CodeUsageError
	case errors.Is(err, domain.ErrInvalidQuiz):
		return http.StatusUnprocessableEntity, CodeInvalidQuiz
	default:
		return http.StatusInternalServerError, CodeInternalError
	}
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// describe classifies err and picks the text shown to clients; internal
// failures never leak their cause.
func describe(err error) (status int, code, message string) {
	status, code = classify(err)
	if code == CodeInternalError {
		return status, code, "internal error"
	}
	return status, code, err.Error()
}

func respondServiceError(w http.ResponseWriter, err error) {
	status, code, message := describe(err)
	respondError(w, status, code, message)
}
