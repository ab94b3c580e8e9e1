package app

import "quizcast/internal/domain"

// Outbound event names. Every domain failure maps to one of the named error
// events; there is no generic catch-all.
const (
	EvGameCreated      = "game-created"
	EvJoinSuccess      = "join-success"
	EvJoinError        = "join-error"
	EvPlayerJoined     = "player-joined"
	EvPlayerLeft       = "player-left"
	EvGameStarted      = "game-started"
	EvNewQuestion      = "new-question"
	EvAnswerSubmitted  = "answer-submitted"
	EvQuestionResults  = "question-results"
	EvGameFinished     = "game-finished"
	EvGameState        = "game-state"
	EvGameError        = "game-error"
	EvHostDisconnected = "host-disconnected"

	EvPollCreated          = "poll-created"
	EvPollJoinSuccess      = "poll-join-success"
	EvPollJoinError        = "poll-join-error"
	EvParticipantJoined    = "participant-joined"
	EvParticipantLeft      = "participant-left"
	EvPollStarted          = "poll-started"
	EvPollResultsUpdated   = "poll-results-updated"
	EvPollVotesUpdated     = "poll-votes-updated"
	EvPollClosed           = "poll-closed"
	EvPollState            = "poll-state"
	EvPollError            = "poll-error"
	EvVoteError            = "vote-error"
	EvPollHostDisconnected = "poll-host-disconnected"

	EvBroadcastPollCreated = "broadcast-poll-created"
	EvPollBroadcast        = "poll-broadcast"
	EvCurrentPollResponse  = "current-poll-response"
	EvVoteSubmitted        = "vote-submitted"
	EvPollFinalResults     = "poll-final-results"
	EvPollBroadcastClosed  = "poll-broadcast-closed"

	EvRateLimitExceeded  = "rate-limit-exceeded"
	EvConnectionRejected = "connection-rejected"
)

type GameCreatedPayload struct {
	GameCode string              `json:"gameCode"`
	Room     domain.GameRoomView `json:"room"`
}

type JoinSuccessPayload struct {
	Player domain.Player          `json:"player"`
	Room   domain.GameRoomSummary `json:"room"`
}

type RosterPayload struct {
	Player      domain.Player   `json:"player"`
	Players     []domain.Player `json:"players"`
	PlayerCount int             `json:"playerCount"`
}

type GameStartedPayload struct {
	Status               domain.GameStatus `json:"status"`
	CurrentQuestionIndex int               `json:"currentQuestionIndex"`
	TotalQuestions       int               `json:"totalQuestions"`
}

// NewQuestionPayload carries a question to the room without its correct
// answer index.
type NewQuestionPayload struct {
	ID             string   `json:"id"`
	Question       string   `json:"question"`
	Options        []string `json:"options"`
	TimeLimit      int      `json:"timeLimit"`
	QuestionNumber int      `json:"questionNumber"`
	TotalQuestions int      `json:"totalQuestions"`
}

// AnswerSubmittedPayload is host-only and carries counts only.
type AnswerSubmittedPayload struct {
	AnswersCount int `json:"answersCount"`
	TotalPlayers int `json:"totalPlayers"`
}

type QuestionResultsPayload struct {
	Results              domain.QuestionResults    `json:"results"`
	Leaderboard          []domain.LeaderboardEntry `json:"leaderboard"`
	CurrentQuestionIndex int                       `json:"currentQuestionIndex"`
	TotalQuestions       int                       `json:"totalQuestions"`
}

type GameFinishedPayload struct {
	Leaderboard    []domain.LeaderboardEntry `json:"leaderboard"`
	TotalQuestions int                       `json:"totalQuestions"`
}

// GameStatePayload holds either a host view or a member summary.
type GameStatePayload struct {
	Room any `json:"room"`
}

type PollCreatedPayload struct {
	PollCode string              `json:"pollCode"`
	Room     domain.PollRoomView `json:"room"`
}

type PollJoinSuccessPayload struct {
	Participant domain.Participant     `json:"participant"`
	Room        domain.PollRoomSummary `json:"room"`
}

type ParticipantRosterPayload struct {
	Participant      domain.Participant   `json:"participant"`
	Participants     []domain.Participant `json:"participants"`
	ParticipantCount int                  `json:"participantCount"`
}

type PollStartedPayload struct {
	Status domain.PollStatus `json:"status"`
	Poll   domain.Poll       `json:"poll"`
}

// PollVotesPayload exposes the attributed vote map. Emitted to the host only,
// and only for non-anonymous polls.
type PollVotesPayload struct {
	PollID string           `json:"pollId"`
	Votes  map[string][]int `json:"votes"`
}

type PollStatePayload struct {
	Room any `json:"room"`
}

type BroadcastPollCreatedPayload struct {
	Poll domain.BroadcastPollView `json:"poll"`
}

type PollBroadcastPayload struct {
	Poll domain.BroadcastPollView `json:"poll"`
}

// CurrentPollPayload answers get-current-poll; Poll is null when no broadcast
// poll is active.
type CurrentPollPayload struct {
	Poll *domain.BroadcastPollView `json:"poll"`
}

type BroadcastJoinSuccessPayload struct {
	Participant      domain.Participant       `json:"participant"`
	Poll             domain.BroadcastPollView `json:"poll"`
	ParticipantCount int                      `json:"participantCount"`
}

type VoteSubmittedPayload struct {
	Results domain.PollResults `json:"results"`
}
