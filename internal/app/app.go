package app

import (
	"context"

	"quizcast/internal/domain"
)

// Emitter is the fan-out surface the state machines publish through. Sends
// are fire-and-forget: delivery failure never rolls back room state.
type Emitter interface {
	// ToConn sends an event to one connection.
	ToConn(connID, event string, payload any)
	// ToRoom sends an event to every connection in a named group.
	ToRoom(room, event string, payload any)
	// ToAll sends an event to every live connection.
	ToAll(event string, payload any)
	// Join adds a connection to a named group.
	Join(room, connID string)
	// DropRoom forgets a named group entirely.
	DropRoom(room string)
}

// RoomIndex records which room codes are live. Best-effort and purely
// observational: it is never consulted for correctness.
type RoomIndex interface {
	MarkLive(kind, code string)
	Drop(kind, code string)
}

// QuizCatalog loads stored quiz content for create-game requests that
// reference a quiz by id instead of carrying it inline.
type QuizCatalog interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}
