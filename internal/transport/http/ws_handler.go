package http

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"quizcast/internal/app"
	"quizcast/internal/domain"
	"quizcast/internal/guard"
)

// WSHandler upgrades connections and routes inbound events to the state
// machines. Every handler validates its own preconditions and reports
// failures as named error events; nothing propagates past the dispatch
// boundary.
type WSHandler struct {
	hub        *Hub
	guard      *guard.Guard
	games      *app.GameManager
	polls      *app.PollManager
	broadcasts *app.BroadcastManager
	upgrader   websocket.Upgrader
}

func NewWSHandler(hub *Hub, g *guard.Guard, games *app.GameManager, polls *app.PollManager, broadcasts *app.BroadcastManager) *WSHandler {
	return &WSHandler{
		hub:        hub,
		guard:      g,
		games:      games,
		polls:      polls,
		broadcasts: broadcasts,
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

type errorPayload struct {
	Message string `json:"message"`
}

type rateLimitPayload struct {
	Message    string `json:"message"`
	RetryAfter int64  `json:"retryAfter"` // milliseconds
}

type createGamePayload struct {
	Quiz     *domain.Quiz `json:"quiz"`
	QuizID   string       `json:"quizId"`
	HostName string       `json:"hostName"`
}

type gameCodePayload struct {
	GameCode string `json:"gameCode"`
}

type submitAnswerPayload struct {
	GameCode      string `json:"gameCode"`
	PlayerID      string `json:"playerId"`
	AnswerIndex   int    `json:"answerIndex"`
	TimeRemaining int    `json:"timeRemaining"`
}

type createPollPayload struct {
	Poll     domain.Poll `json:"poll"`
	HostName string      `json:"hostName"`
}

type pollCodePayload struct {
	PollCode string `json:"pollCode"`
}

type submitVotePayload struct {
	PollCode        string `json:"pollCode"`
	ParticipantID   string `json:"participantId"`
	SelectedOptions []int  `json:"selectedOptions"`
}

type broadcastVotePayload struct {
	SelectedOptions []int `json:"selectedOptions"`
}

// ServeWS upgrades the request, admits the connection through the guard, and
// pumps inbound events through the dispatch table until the peer goes away.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	addr := remoteAddr(r)

	if err := h.guard.Admit(connID, addr); err != nil {
		// Warn the peer before dropping it; capacity rejections close the
		// connection outright.
		frame, _ := json.Marshal(envelope{Type: app.EvConnectionRejected, Payload: errorPayload{Message: err.Error()}})
		_ = conn.WriteMessage(websocket.TextMessage, frame)
		return
	}

	client := h.hub.Register(connID)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		client.writePump(conn)
	}()

	defer func() {
		// Teardown order matters: the state machines broadcast departure
		// events, so the hub must still know every other connection.
		h.games.HandleDisconnect(connID)
		h.polls.HandleDisconnect(connID)
		h.hub.Unregister(connID)
		h.guard.Release(connID, addr)
		<-writerDone
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		if !h.guard.Allow(connID) {
			h.hub.ToConn(connID, app.EvRateLimitExceeded, rateLimitPayload{
				Message:    "Too many requests. Please slow down.",
				RetryAfter: h.guard.RetryAfter().Milliseconds(),
			})
			continue
		}
		h.dispatch(r.Context(), connID, inbound)
	}
}

func (h *WSHandler) dispatch(ctx context.Context, connID string, msg inboundMessage) {
	switch msg.Type {
	case "create-game":
		var p createGamePayload
		if !h.decode(connID, app.EvGameError, msg, &p) {
			return
		}
		if _, err := h.games.Create(ctx, connID, p.HostName, p.Quiz, p.QuizID); err != nil {
			h.sendError(connID, app.EvGameError, err)
		}
	case "join-game":
		var p gameCodePayload
		if !h.decode(connID, app.EvJoinError, msg, &p) {
			return
		}
		if err := h.games.Join(connID, p.GameCode); err != nil {
			h.sendError(connID, app.EvJoinError, err)
		}
	case "start-game":
		var p gameCodePayload
		if !h.decode(connID, app.EvGameError, msg, &p) {
			return
		}
		if err := h.games.Start(connID, p.GameCode); err != nil {
			h.sendError(connID, app.EvGameError, err)
		}
	case "submit-answer":
		var p submitAnswerPayload
		if !h.decode(connID, app.EvGameError, msg, &p) {
			return
		}
		if err := h.games.SubmitAnswer(connID, p.GameCode, p.PlayerID, p.AnswerIndex, p.TimeRemaining); err != nil {
			h.sendError(connID, app.EvGameError, err)
		}
	case "end-question":
		var p gameCodePayload
		if !h.decode(connID, app.EvGameError, msg, &p) {
			return
		}
		if err := h.games.EndQuestion(connID, p.GameCode); err != nil {
			h.sendError(connID, app.EvGameError, err)
		}
	case "next-question":
		var p gameCodePayload
		if !h.decode(connID, app.EvGameError, msg, &p) {
			return
		}
		if err := h.games.NextQuestion(connID, p.GameCode); err != nil {
			h.sendError(connID, app.EvGameError, err)
		}
	case "get-game-state":
		var p gameCodePayload
		if !h.decode(connID, app.EvGameError, msg, &p) {
			return
		}
		if err := h.games.State(connID, p.GameCode); err != nil {
			h.sendError(connID, app.EvGameError, err)
		}
	case "create-poll":
		var p createPollPayload
		if !h.decode(connID, app.EvPollError, msg, &p) {
			return
		}
		if _, err := h.polls.Create(connID, p.HostName, p.Poll); err != nil {
			h.sendError(connID, app.EvPollError, err)
		}
	case "join-poll":
		var p pollCodePayload
		if !h.decode(connID, app.EvPollJoinError, msg, &p) {
			return
		}
		if err := h.polls.Join(connID, p.PollCode); err != nil {
			h.sendError(connID, app.EvPollJoinError, err)
		}
	case "start-poll":
		var p pollCodePayload
		if !h.decode(connID, app.EvPollError, msg, &p) {
			return
		}
		if err := h.polls.Start(connID, p.PollCode); err != nil {
			h.sendError(connID, app.EvPollError, err)
		}
	case "submit-vote":
		var p submitVotePayload
		if !h.decode(connID, app.EvVoteError, msg, &p) {
			return
		}
		if err := h.polls.SubmitVote(connID, p.PollCode, p.ParticipantID, p.SelectedOptions); err != nil {
			h.sendError(connID, app.EvVoteError, err)
		}
	case "close-poll":
		var p pollCodePayload
		if !h.decode(connID, app.EvPollError, msg, &p) {
			return
		}
		if err := h.polls.Close(connID, p.PollCode); err != nil {
			h.sendError(connID, app.EvPollError, err)
		}
	case "get-poll-state":
		var p pollCodePayload
		if !h.decode(connID, app.EvPollError, msg, &p) {
			return
		}
		if err := h.polls.State(connID, p.PollCode); err != nil {
			h.sendError(connID, app.EvPollError, err)
		}
	case "create-broadcast-poll":
		var p createPollPayload
		if !h.decode(connID, app.EvPollError, msg, &p) {
			return
		}
		if err := h.broadcasts.Create(connID, p.HostName, p.Poll); err != nil {
			h.sendError(connID, app.EvPollError, err)
		}
	case "launch-broadcast-poll":
		if err := h.broadcasts.Launch(connID); err != nil {
			h.sendError(connID, app.EvPollError, err)
		}
	case "get-current-poll":
		h.broadcasts.Current(connID)
	case "join-broadcast-poll":
		if err := h.broadcasts.Join(connID); err != nil {
			h.sendError(connID, app.EvPollJoinError, err)
		}
	case "submit-broadcast-vote":
		var p broadcastVotePayload
		if !h.decode(connID, app.EvVoteError, msg, &p) {
			return
		}
		if err := h.broadcasts.Vote(connID, p.SelectedOptions); err != nil {
			h.sendError(connID, app.EvVoteError, err)
		}
	case "close-broadcast-poll":
		if err := h.broadcasts.Close(connID); err != nil {
			h.sendError(connID, app.EvPollError, err)
		}
	default:
		log.Printf("unknown event %q from %s", msg.Type, connID)
	}
}

func (h *WSHandler) decode(connID, errEvent string, msg inboundMessage, dst any) bool {
	if err := json.Unmarshal(msg.Payload, dst); err != nil {
		h.hub.ToConn(connID, errEvent, errorPayload{Message: "invalid " + msg.Type + " payload"})
		return false
	}
	return true
}

func (h *WSHandler) sendError(connID, event string, err error) {
	h.hub.ToConn(connID, event, errorPayload{Message: err.Error()})
}

func remoteAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
