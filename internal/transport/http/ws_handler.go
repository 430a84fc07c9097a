package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/violabg/dev-quiz-battle-sub000/internal/app"
	"github.com/violabg/dev-quiz-battle-sub000/internal/session"
)

type WSHandler struct {
	service  *app.GameService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService) *WSHandler {
	return &WSHandler{
		service: service,
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

type createQuestionPayload struct {
	Language   string `json:"language"`
	Difficulty string `json:"difficulty"`
}

type answerPayload struct {
	QuestionID     string `json:"questionId"`
	SelectedOption int    `json:"selectedOption"`
	ResponseTimeMs int64  `json:"responseTimeMs"`
}

type advanceTurnPayload struct {
	CurrentTurn int `json:"currentTurn"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type createGameRequest struct {
	HostID           string `json:"hostId"`
	MaxPlayers       int    `json:"maxPlayers"`
	TimeLimitSeconds int    `json:"timeLimitSeconds"`
}

// CreateGame is the plain-HTTP entry point for opening a lobby; players then
// connect to /ws with the returned code.
func (h *WSHandler) CreateGame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req createGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.HostID == "" {
		http.Error(w, "invalid create game request", http.StatusBadRequest)
		return
	}
	game, err := h.service.CreateGame(r.Context(), req.HostID, req.MaxPlayers, req.TimeLimitSeconds)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"gameId": game.ID, "code": game.Code})
}

// ServeWS upgrades the connection and wires it into the game use cases. Each
// connection runs its own session state machine; pushed views are the
// client's only source of truth.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	userID := r.URL.Query().Get("userId")
	if code == "" || userID == "" {
		http.Error(w, "missing code or userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	player, err := h.service.JoinGame(r.Context(), code, userID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	gameID := player.GameID

	runCtx, stop := context.WithCancel(r.Context())
	defer stop()

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})
	runnerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		// A dead writer must unblock everyone still queueing messages.
		defer stop()
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	runner := session.NewRunner(h.service, session.NewMachine(userID))
	go func() {
		defer close(runnerDone)
		err := runner.Run(runCtx, gameID, func(view session.View) {
			select {
			case send <- outboundMessage[any]{Type: "state", Payload: view}:
			case <-runCtx.Done():
			}
		})
		if err != nil && runCtx.Err() == nil {
			log.Printf("session runner stopped: %v", err)
		}
	}()

	select {
	case send <- outboundMessage[any]{Type: "joined", Payload: player}:
	case <-runCtx.Done():
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if done := h.handleMessage(runCtx, gameID, userID, inbound, send); done {
			break
		}
	}

	stop()
	<-runnerDone
	close(send)
	<-writerDone
}

// handleMessage dispatches one inbound client message. It reports true when
// the connection should close (the player left).
func (h *WSHandler) handleMessage(ctx context.Context, gameID, userID string, inbound inboundMessage, send chan<- outboundMessage[any]) bool {
	// Queueing must never outlive the writer; it cancels ctx on exit.
	emit := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-ctx.Done():
		}
	}
	fail := func(err error) {
		emit(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
	}

	switch inbound.Type {
	case "start":
		if err := h.service.StartGame(ctx, gameID, userID); err != nil {
			fail(err)
		}
	case "createQuestion":
		var payload createQuestionPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			fail(err)
			return false
		}
		if _, err := h.service.CreateQuestion(ctx, gameID, userID, payload.Language, payload.Difficulty); err != nil {
			fail(err)
		}
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			fail(err)
			return false
		}
		game, err := h.service.Snapshot(ctx, gameID)
		if err != nil {
			fail(err)
			return false
		}
		result, err := h.service.SubmitAnswer(ctx, payload.QuestionID, userID, gameID,
			payload.SelectedOption, payload.ResponseTimeMs, int64(game.Game.TimeLimit)*1000)
		if err != nil {
			fail(err)
			return false
		}
		emit(outboundMessage[any]{Type: "answerResult", Payload: result})
	case "advanceTurn":
		var payload advanceTurnPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			fail(err)
			return false
		}
		if _, err := h.service.AdvanceTurn(ctx, gameID, payload.CurrentTurn); err != nil {
			fail(err)
		}
	case "leave":
		if err := h.service.LeaveGame(ctx, gameID, userID); err != nil {
			fail(err)
		}
		return true
	default:
		emit(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
	}
	return false
}
