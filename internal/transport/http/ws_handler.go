package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"itef-puzzle-service/internal/app"
	"itef-puzzle-service/internal/domain"
)

type WSHandler struct {
	service  *app.Service
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.Service, log *zap.Logger) *WSHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		log:     log,
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

type registerPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type attemptPayload struct {
	PuzzleID  string `json:"puzzleId"`
	IsCorrect bool   `json:"isCorrect"`
	Score     *int   `json:"score"`
	TimeSpent int    `json:"timeSpent"`
	UsedHints bool   `json:"usedHints"`
}

type quizPayload struct {
	PuzzleID  string            `json:"puzzleId"`
	Answers   map[string]string `json:"answers"`
	TimeSpent int               `json:"timeSpent"`
	UsedHints bool              `json:"usedHints"`
}

type puzzlePayload struct {
	PuzzleID string `json:"puzzleId"`
}

type sessionPayload struct {
	ClientID   string          `json:"clientId"`
	Identity   domain.Identity `json:"identity"`
	Registered bool            `json:"registered"`
}

type quizResult struct {
	Score  int                 `json:"score"`
	Passed bool                `json:"passed"`
	Result domain.RecordResult `json:"result"`
}

type statusPayload struct {
	PuzzleID     string              `json:"puzzleId"`
	Status       domain.PuzzleStatus `json:"status"`
	AttemptCount int                 `json:"attemptCount"`
	CanShowHints bool                `json:"canShowHints"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// ServeWS upgrades HTTP requests to websockets and binds the connection to one
// device. clientId identifies the device; a fresh one is issued when absent.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		clientID = uuid.NewString()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := r.Context()
	device, release := h.service.Acquire(clientID)
	defer release()
	log := h.log.With(zap.String("clientId", clientID))

	updates, cancel := device.Identity.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug("ws write error", zap.Error(err))
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case identity, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "identity", Payload: identity}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	identity, registered := device.Identity.Current(ctx)
	send <- outboundMessage[any]{Type: "session", Payload: sessionPayload{
		ClientID:   clientID,
		Identity:   identity,
		Registered: registered,
	}}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		typ, payload, err := h.dispatch(ctx, device, inbound)
		if err != nil {
			send <- errorMessage(err)
			continue
		}
		if typ != "" {
			send <- outboundMessage[any]{Type: typ, Payload: payload}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) dispatch(ctx context.Context, device *app.Device, inbound inboundMessage) (string, any, error) {
	board := h.service.Leaderboard()
	switch inbound.Type {
	case "register":
		var p registerPayload
		if err := decode(inbound.Payload, &p); err != nil {
			return "", nil, err
		}
		// the identity push from Subscribe notifies the client
		_, err := device.Identity.Register(ctx, p.Name, p.Email, p.Phone)
		return "", nil, err
	case "logout":
		return "", nil, device.Logout(ctx)
	case "identity":
		identity, _ := device.Identity.Current(ctx)
		return "identity", identity, nil
	case "attempt":
		var p attemptPayload
		if err := decode(inbound.Payload, &p); err != nil {
			return "", nil, err
		}
		res, err := device.Progress.RecordAttempt(ctx, domain.AttemptInput{
			PuzzleID:         p.PuzzleID,
			IsCorrect:        p.IsCorrect,
			Score:            p.Score,
			TimeSpentSeconds: p.TimeSpent,
			UsedHints:        p.UsedHints,
		})
		return "attemptResult", res, err
	case "quiz":
		var p quizPayload
		if err := decode(inbound.Payload, &p); err != nil {
			return "", nil, err
		}
		puzzle, err := h.service.Puzzle(ctx, p.PuzzleID)
		if err != nil {
			return "", nil, err
		}
		score := app.ScoreQuiz(puzzle, p.Answers)
		passed := app.QuizPassed(score, puzzle)
		res, err := device.Progress.RecordAttempt(ctx, domain.AttemptInput{
			PuzzleID:         p.PuzzleID,
			IsCorrect:        passed,
			Score:            &score,
			TimeSpentSeconds: p.TimeSpent,
			UsedHints:        p.UsedHints,
		})
		return "quizResult", quizResult{Score: score, Passed: passed, Result: res}, err
	case "status":
		var p puzzlePayload
		if err := decode(inbound.Payload, &p); err != nil {
			return "", nil, err
		}
		return "status", statusPayload{
			PuzzleID:     p.PuzzleID,
			Status:       device.Progress.PuzzleStatus(ctx, p.PuzzleID),
			AttemptCount: device.Progress.AttemptCount(ctx, p.PuzzleID),
			CanShowHints: device.Progress.CanShowHints(ctx, p.PuzzleID),
		}, nil
	case "stats":
		return "stats", device.Progress.Stats(ctx), nil
	case "catalog":
		puzzles, err := h.service.Catalog(ctx)
		return "catalog", puzzles, err
	case "winners":
		var p puzzlePayload
		if err := decode(inbound.Payload, &p); err != nil {
			return "", nil, err
		}
		return "winners", board.Winners(ctx, device, p.PuzzleID), nil
	case "attendees":
		var p puzzlePayload
		if err := decode(inbound.Payload, &p); err != nil {
			return "", nil, err
		}
		return "attendees", board.Attendees(ctx, device, p.PuzzleID), nil
	case "reset":
		return "reset", struct{}{}, device.Reset(ctx)
	default:
		return "", nil, errors.New("unsupported message type")
	}
}

// decode tolerates an absent payload so filter-only messages can omit it.
func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.New("invalid payload")
	}
	return nil
}

func errorMessage(err error) outboundMessage[any] {
	payload := errorPayload{Message: err.Error()}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		payload = errorPayload{Message: verr.Message, Field: verr.Field}
	}
	return outboundMessage[any]{Type: "error", Payload: payload}
}
