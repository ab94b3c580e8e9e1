package domain

import "errors"

var (
	// ErrGameNotFound is returned when a game code does not resolve to a live room.
	ErrGameNotFound = errors.New("game not found")
	// ErrPollNotFound is returned when a poll code does not resolve to a live room.
	ErrPollNotFound = errors.New("poll not found")
	// ErrAlreadyStarted rejects joins and starts once a session has left the waiting state.
	ErrAlreadyStarted = errors.New("game has already started")
	// ErrAlreadyJoined rejects a second join from a connection that already has a member record.
	ErrAlreadyJoined = errors.New("already joined")
	// ErrUnauthorized rejects host-only transitions attempted by non-hosts.
	ErrUnauthorized = errors.New("not authorized")
	// ErrNoPlayers rejects starting a game with an empty roster.
	ErrNoPlayers = errors.New("no players to start the game")
	// ErrInvalidQuiz indicates a structurally invalid quiz.
	ErrInvalidQuiz = errors.New("invalid quiz")
	// ErrInvalidPoll indicates a structurally invalid poll.
	ErrInvalidPoll = errors.New("invalid poll")
	// ErrInvalidState rejects a transition attempted outside its valid lifecycle phase.
	ErrInvalidState = errors.New("action not allowed in current state")
	// ErrPlayerNotFound indicates a submission for a player id the room does not know.
	ErrPlayerNotFound = errors.New("player not found in game")
	// ErrNotJoined indicates a vote from a connection without a participant record.
	ErrNotJoined = errors.New("not joined in poll")
	// ErrEmptyVote rejects a vote with no selected options.
	ErrEmptyVote = errors.New("no options selected")
	// ErrMultipleNotAllowed rejects multi-option votes when the poll forbids them.
	ErrMultipleNotAllowed = errors.New("multiple selections are not allowed")
	// ErrOptionOutOfRange rejects option or answer indices outside the option list.
	ErrOptionOutOfRange = errors.New("option index out of range")
	// ErrAlreadyVoted rejects a second broadcast-poll vote from the same participant.
	ErrAlreadyVoted = errors.New("already voted")
	// ErrNoActivePoll indicates there is no broadcast poll accepting the request.
	ErrNoActivePoll = errors.New("no active poll")
	// ErrQuizNotFound indicates the quiz content could not be loaded from the catalog.
	ErrQuizNotFound = errors.New("quiz not found")
)
