package domain

import (
	"fmt"
	"time"
)

// GameStatus is the lifecycle phase of a game room.
type GameStatus string

const (
	GameWaiting  GameStatus = "waiting"
	GameActive   GameStatus = "active"
	GameResults  GameStatus = "results"
	GameFinished GameStatus = "finished"
)

// PollStatus is the lifecycle phase of a room-scoped poll.
type PollStatus string

const (
	PollWaiting PollStatus = "waiting"
	PollActive  PollStatus = "active"
	PollClosed  PollStatus = "closed"
)

// BroadcastStatus is the lifecycle phase of the global broadcast poll.
type BroadcastStatus string

const (
	BroadcastCreated BroadcastStatus = "created"
	BroadcastActive  BroadcastStatus = "active"
	BroadcastClosed  BroadcastStatus = "closed"
)

// Question is a single multiple-choice question. CorrectAnswer indexes into
// Options and must never be sent to non-hosts before the question ends.
type Question struct {
	ID            string   `json:"id"`
	Text          string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	TimeLimit     int      `json:"timeLimit"` // whole seconds
}

// Quiz is an ordered sequence of questions. Rooms hold a private copy taken
// at creation time, so later host edits never touch a live session.
type Quiz struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Questions   []Question `json:"questions"`
}

// Validate checks the structural invariants of a quiz before a room is built
// around it.
func (q Quiz) Validate() error {
	if len(q.Questions) == 0 {
		return fmt.Errorf("%w: quiz has no questions", ErrInvalidQuiz)
	}
	for i, question := range q.Questions {
		if len(question.Options) < 2 {
			return fmt.Errorf("%w: question %d needs at least 2 options", ErrInvalidQuiz, i+1)
		}
		if question.CorrectAnswer < 0 || question.CorrectAnswer >= len(question.Options) {
			return fmt.Errorf("%w: question %d correct answer out of range", ErrInvalidQuiz, i+1)
		}
		if question.TimeLimit <= 0 {
			return fmt.Errorf("%w: question %d needs a positive time limit", ErrInvalidQuiz, i+1)
		}
	}
	return nil
}

// Clone returns a deep copy of the quiz.
func (q Quiz) Clone() Quiz {
	out := q
	out.Questions = make([]Question, len(q.Questions))
	for i, question := range q.Questions {
		cp := question
		cp.Options = append([]string(nil), question.Options...)
		out.Questions[i] = cp
	}
	return out
}

// QuizSummary is the player-facing projection of a quiz: questions and
// correct answers never leave the server for non-hosts.
type QuizSummary struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (q Quiz) Summary() QuizSummary {
	return QuizSummary{Title: q.Title, Description: q.Description}
}

// Player is an ephemeral per-connection participant in a game room.
type Player struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Score    int       `json:"score"`
	ConnID   string    `json:"-"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Answer records one player's submission for the current question.
type Answer struct {
	AnswerIndex   int       `json:"answerIndex"`
	TimeRemaining int       `json:"timeRemaining"`
	SubmittedAt   time.Time `json:"submittedAt"`
}

// LeaderboardEntry annotates a player with its 1-based rank. Ties keep join
// order, so ranks are stable under recomputation.
type LeaderboardEntry struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
	Rank  int    `json:"rank"`
}

// QuestionResults is the per-question breakdown revealed once a question ends.
type QuestionResults struct {
	QuestionID     string         `json:"questionId"`
	Question       string         `json:"question"`
	Options        []string       `json:"options"`
	CorrectAnswer  int            `json:"correctAnswer"`
	PlayerAnswers  map[string]int `json:"playerAnswers"`
	CorrectPlayers []string       `json:"correctPlayers"`
	Stats          []int          `json:"stats"`
}

// GameRoomView is the host-facing snapshot of a game room.
type GameRoomView struct {
	ID                   string     `json:"id"`
	Quiz                 Quiz       `json:"quiz"`
	HostName             string     `json:"hostName"`
	Players              []Player   `json:"players"`
	Status               GameStatus `json:"status"`
	CurrentQuestionIndex int        `json:"currentQuestionIndex"`
	CreatedAt            time.Time  `json:"createdAt"`
}

// GameRoomSummary is the member-facing snapshot, with the quiz redacted.
type GameRoomSummary struct {
	ID                   string      `json:"id"`
	Quiz                 QuizSummary `json:"quiz"`
	Players              []Player    `json:"players"`
	Status               GameStatus  `json:"status"`
	CurrentQuestionIndex int         `json:"currentQuestionIndex"`
}

// Poll is a single question put to a vote.
type Poll struct {
	ID                   string   `json:"id"`
	Question             string   `json:"question"`
	Options              []string `json:"options"`
	AllowMultipleChoices bool     `json:"allowMultipleChoices"`
	IsAnonymous          bool     `json:"isAnonymous"`
	TimeLimit            int      `json:"timeLimit,omitempty"` // seconds; 0 means unlimited
}

// Validate checks the structural invariants of a poll.
func (p Poll) Validate() error {
	if p.Question == "" {
		return fmt.Errorf("%w: poll needs a question", ErrInvalidPoll)
	}
	if len(p.Options) < 2 {
		return fmt.Errorf("%w: poll needs at least 2 options", ErrInvalidPoll)
	}
	if p.TimeLimit < 0 {
		return fmt.Errorf("%w: negative time limit", ErrInvalidPoll)
	}
	return nil
}

// Clone returns a deep copy of the poll.
func (p Poll) Clone() Poll {
	out := p
	out.Options = append([]string(nil), p.Options...)
	return out
}

// Participant is an ephemeral per-connection member of a poll.
type Participant struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	HasVoted bool      `json:"hasVoted"`
	ConnID   string    `json:"-"`
	JoinedAt time.Time `json:"joinedAt"`
}

// PollResults is the tally payload recomputed on every vote. The attributed
// participant->selection map is deliberately absent here: attribution is
// always stored internally and only rendered into a separate host-facing
// payload when the poll is not anonymous.
type PollResults struct {
	PollID           string   `json:"pollId,omitempty"`
	Question         string   `json:"question"`
	Options          []string `json:"options"`
	Stats            []int    `json:"stats"`
	TotalVotes       int      `json:"totalVotes"`
	ParticipantCount int      `json:"participantCount"`
	VotedCount       int      `json:"votedCount,omitempty"`
	IsAnonymous      bool     `json:"isAnonymous,omitempty"`
}

// PollRoomView is the host-facing snapshot of a poll room.
type PollRoomView struct {
	ID           string        `json:"id"`
	Poll         Poll          `json:"poll"`
	HostName     string        `json:"hostName"`
	Participants []Participant `json:"participants"`
	Status       PollStatus    `json:"status"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// PollRoomSummary is the member-facing snapshot of a poll room.
type PollRoomSummary struct {
	ID           string        `json:"id"`
	Poll         Poll          `json:"poll"`
	Participants []Participant `json:"participants"`
	Status       PollStatus    `json:"status"`
}

// BroadcastPollView is the snapshot of the global broadcast poll pushed to
// every connection on launch.
type BroadcastPollView struct {
	Poll
	HostName  string          `json:"hostName"`
	Status    BroadcastStatus `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
}
