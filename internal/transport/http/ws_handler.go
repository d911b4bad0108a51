package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"micro-quiz-service/internal/app"
)

// Message types exchanged over the attempt socket.
const (
	msgSelect  = "select"
	msgAdvance = "advance"
	msgReset   = "reset"
	msgState   = "state"
	msgError   = "error"
)

type WSHandler struct {
	service  *app.AttemptService
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.AttemptService, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		logger:  logger.With().Str("component", "ws").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	OptionIndex *int `json:"optionIndex"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorMessage(code, message string) outboundMessage[any] {
	return outboundMessage[any]{Type: msgError, Payload: errorPayload{Code: code, Message: message}}
}

func serviceErrorMessage(err error) outboundMessage[any] {
	_, code, message := describe(err)
	return errorMessage(code, message)
}

// ServeWS upgrades the request, starts an attempt for the user and streams its
// state until either side hangs up. Closing the socket abandons the attempt.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	userID := r.URL.Query().Get("userId")
	if quizID == "" || userID == "" {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, "missing quizId or userId")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	// hijacked connections cancel the request context on teardown
	ctx := context.WithoutCancel(r.Context())

	started, err := h.service.Start(ctx, quizID, userID)
	if err != nil {
		h.logger.Info().Err(err).Str("quiz_id", quizID).Str("user_id", userID).Msg("start attempt rejected")
		_ = conn.WriteJSON(serviceErrorMessage(err))
		return
	}
	attemptID := started.AttemptID
	defer h.service.Close(ctx, attemptID)

	updates, cancel, err := h.service.Subscribe(ctx, attemptID)
	if err != nil {
		_ = conn.WriteJSON(serviceErrorMessage(err))
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// single writer: gorilla connections allow one concurrent writer
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug().Err(err).Str("attempt_id", attemptID).Msg("ws write error")
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				if !deliver(send, writerDone, closeSignals, outboundMessage[any]{Type: msgState, Payload: update}) {
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		reply, ok := h.handle(ctx, attemptID, inbound)
		if ok {
			continue
		}
		if !deliver(send, writerDone, nil, reply) {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// deliver queues msg for the writer. It reports false once the writer has
// exited on a failed write or stop is closed, since nothing drains send then.
func deliver(send chan<- outboundMessage[any], writerDone, stop <-chan struct{}, msg outboundMessage[any]) bool {
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	case <-stop:
		return false
	}
}

// handle applies one client message. Successful operations are reported by the
// subscription, so only failures produce a direct reply.
func (h *WSHandler) handle(ctx context.Context, attemptID string, inbound inboundMessage) (outboundMessage[any], bool) {
	var err error
	switch inbound.Type {
	case msgSelect:
		var payload selectPayload
		if jsonErr := json.Unmarshal(inbound.Payload, &payload); jsonErr != nil || payload.OptionIndex == nil {
			return errorMessage(CodeInvalidPayload, "select needs an optionIndex"), false
		}
		_, err = h.service.Select(ctx, attemptID, *payload.OptionIndex)
	case msgAdvance:
		_, err = h.service.Advance(ctx, attemptID)
	case msgReset:
		_, err = h.service.Reset(ctx, attemptID)
	default:
		return errorMessage(CodeUnknownMessageType, "unsupported message type"), false
	}
	if err != nil {
		return serviceErrorMessage(err), false
	}
	return outboundMessage[any]{}, true
}
