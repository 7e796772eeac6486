// Package http exposes the service over a gorilla/websocket play endpoint
// and a chi REST API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"trivia-league-service/internal/clock"
	"trivia-league-service/internal/content"
	"trivia-league-service/internal/domain"
	"trivia-league-service/internal/session"
)

// Scorekeeper banks a finished attempt's points, exactly once per
// (user, quiz) pair.
type Scorekeeper interface {
	Reconcile(ctx context.Context, userID, quizID string, pointsEarned int) (domain.UserProfile, error)
}

// PointMirror propagates newly banked points into the user's leagues.
type PointMirror interface {
	MirrorPoints(ctx context.Context, userID string, points int) error
}

// PlayHandler runs one quiz attempt per websocket connection: it serves
// questions, evaluates answers, drives the countdown server-side and
// reconciles the result when the player has an identity. Without a userId
// the attempt runs detached and nothing durable is written.
type PlayHandler struct {
	quizzes    content.Repository
	scores     Scorekeeper
	leagues    PointMirror
	logger     *slog.Logger
	upgrader   websocket.Upgrader
	tick       time.Duration
	engineOpts []session.Option
}

// PlayOption customizes a PlayHandler, mostly for tests.
type PlayOption func(*PlayHandler)

// WithTickInterval shortens the countdown interval.
func WithTickInterval(d time.Duration) PlayOption {
	return func(h *PlayHandler) { h.tick = d }
}

// WithEngineOptions forwards options to every session engine the handler
// creates.
func WithEngineOptions(opts ...session.Option) PlayOption {
	return func(h *PlayHandler) { h.engineOpts = opts }
}

func NewPlayHandler(quizzes content.Repository, scores Scorekeeper, leagues PointMirror, logger *slog.Logger, opts ...PlayOption) *PlayHandler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &PlayHandler{
		quizzes: quizzes,
		scores:  scores,
		leagues: leagues,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		tick: time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Option string `json:"option"`
}

type questionPayload struct {
	Index   int      `json:"index"`
	Total   int      `json:"total"`
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

type tickPayload struct {
	Remaining int `json:"remaining"`
}

type resultPayload struct {
	domain.QuizResult
	Profile   *domain.UserProfile `json:"profile,omitempty"`
	SyncError string              `json:"syncError,omitempty"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and plays one attempt to completion.
func (h *PlayHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	userID := r.URL.Query().Get("userId") // optional: absent means detached play
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	quiz, err := h.quizzes.GetQuiz(r.Context(), quizID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Warn("ws write error", "error", err)
				return
			}
		}
	}()

	// push never blocks and never races the channel close: the advance
	// timer can fire after the client has gone away.
	var sendMu sync.Mutex
	sendClosed := false
	push := func(msg outboundMessage[any]) {
		sendMu.Lock()
		defer sendMu.Unlock()
		if sendClosed {
			return
		}
		select {
		case send <- msg:
		default:
			h.logger.Warn("ws send buffer full, dropping message", "type", msg.Type)
		}
	}
	closeSend := func() {
		sendMu.Lock()
		sendClosed = true
		close(send)
		sendMu.Unlock()
	}

	var engine *session.Engine
	pushQuestion := func() {
		q, ok := engine.CurrentQuestion()
		if !ok {
			return
		}
		push(outboundMessage[any]{Type: "question", Payload: questionPayload{
			Index:   engine.CurrentIndex(),
			Total:   len(quiz.Questions),
			ID:      q.ID,
			Text:    q.Text,
			Options: q.Options,
		}})
	}

	opts := append([]session.Option{session.WithAdvanceHook(pushQuestion)}, h.engineOpts...)
	engine = session.NewEngine(opts...)

	if err := engine.Start(quiz); err != nil {
		push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		closeSend()
		<-writerDone
		return
	}

	var finishOnce sync.Once
	finalize := func(timedOut bool) {
		finishOnce.Do(func() {
			result := engine.Finish(timedOut)
			payload := resultPayload{QuizResult: result}
			if userID != "" {
				profile, err := h.scores.Reconcile(r.Context(), userID, quizID, result.PointsEarned)
				switch {
				case err == nil:
					payload.Profile = &profile
					if mirrorErr := h.leagues.MirrorPoints(r.Context(), userID, result.PointsEarned); mirrorErr != nil {
						h.logger.Warn("league mirror failed", "user", userID, "error", mirrorErr)
					}
				case errors.Is(err, domain.ErrAlreadyCompleted):
					payload.Profile = &profile
				default:
					h.logger.Warn("reconcile failed", "user", userID, "quiz", quizID, "error", err)
					payload.SyncError = err.Error()
				}
			}
			push(outboundMessage[any]{Type: "result", Payload: payload})
			cancel()
		})
	}

	countdownDone := make(chan struct{})
	go func() {
		defer close(countdownDone)
		clock.Countdown{Interval: h.tick}.Run(ctx, func() bool {
			remaining, finished := engine.Tick()
			if finished {
				finalize(true)
				return false
			}
			push(outboundMessage[any]{Type: "tick", Payload: tickPayload{Remaining: remaining}})
			return true
		})
	}()

	pushQuestion()
	if engine.Phase() == session.PhaseFinished {
		// Zero-question quizzes finish at Start.
		finalize(false)
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}})
				continue
			}
			fb, ok := engine.SubmitAnswer(payload.Option)
			if !ok {
				// Duplicate or out-of-phase submission: silent no-op.
				continue
			}
			push(outboundMessage[any]{Type: "feedback", Payload: fb})
			if engine.Phase() == session.PhaseFinished {
				finalize(false)
			}
		default:
			push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
		}
	}

	cancel()
	<-countdownDone
	closeSend()
	<-writerDone
}
