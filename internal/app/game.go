package app

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"quizcast/internal/domain"
)

// gameRoomKind tags game codes in group names and the room index so a game
// code can never collide with a poll code of the same spelling.
const gameRoomKind = "game"

// GameManager owns every live game room and runs the quiz lifecycle:
// waiting -> active -> results -> active -> ... -> finished.
//
// A single mutex guards the registry so each event handler applies its whole
// transition before the next one runs, mirroring the cooperative scheduling
// the protocol assumes.
type GameManager struct {
	emitter Emitter
	catalog QuizCatalog
	index   RoomIndex

	mu    sync.Mutex
	rooms map[string]*gameRoom
}

type gameRoom struct {
	code     string
	quiz     domain.Quiz
	hostConn string
	hostName string
	players  []*domain.Player
	current  int
	status   domain.GameStatus
	answers  map[string]domain.Answer

	questionStartedAt time.Time
	// epoch fences scheduled auto-advance callbacks: a timer captures the
	// epoch when armed and is ignored if the room has since moved on.
	epoch     int
	timer     *time.Timer
	createdAt time.Time
}

func NewGameManager(emitter Emitter, catalog QuizCatalog, index RoomIndex) *GameManager {
	return &GameManager{
		emitter: emitter,
		catalog: catalog,
		index:   index,
		rooms:   make(map[string]*gameRoom),
	}
}

// Create builds a game room in the waiting state around a private copy of
// the quiz and returns its code. When quiz is nil the quiz is loaded from
// the catalog by id.
func (m *GameManager) Create(ctx context.Context, connID, hostName string, quiz *domain.Quiz, quizID string) (string, error) {
	var content domain.Quiz
	switch {
	case quiz != nil:
		content = quiz.Clone()
	case quizID != "":
		loaded, err := m.catalog.GetQuiz(ctx, quizID)
		if err != nil {
			return "", err
		}
		content = loaded.Clone()
	default:
		return "", domain.ErrInvalidQuiz
	}
	if err := content.Validate(); err != nil {
		return "", err
	}
	content.ID = uuid.NewString()
	for i := range content.Questions {
		if content.Questions[i].ID == "" {
			content.Questions[i].ID = uuid.NewString()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	code, err := m.newCodeLocked()
	if err != nil {
		return "", err
	}
	room := &gameRoom{
		code:      code,
		quiz:      content,
		hostConn:  connID,
		hostName:  hostName,
		current:   -1,
		status:    domain.GameWaiting,
		answers:   make(map[string]domain.Answer),
		createdAt: time.Now(),
	}
	m.rooms[code] = room
	m.index.MarkLive(gameRoomKind, code)
	m.emitter.Join(groupName(gameRoomKind, code), connID)
	m.emitter.ToConn(connID, EvGameCreated, GameCreatedPayload{GameCode: code, Room: room.hostView()})
	log.Printf("game %s created by %q", code, hostName)
	return code, nil
}

// Join adds a player to a waiting room. The joining connection receives its
// player record and a redacted room snapshot; the room receives the updated
// roster.
func (m *GameManager) Join(connID, code string) error {
	code = NormalizeCode(code)

	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[code]
	if !ok {
		return domain.ErrGameNotFound
	}
	if room.status != domain.GameWaiting {
		return domain.ErrAlreadyStarted
	}
	for _, p := range room.players {
		if p.ConnID == connID {
			return domain.ErrAlreadyJoined
		}
	}

	player := &domain.Player{
		ID:       uuid.NewString(),
		Name:     playerName(len(room.players) + 1),
		ConnID:   connID,
		JoinedAt: time.Now(),
	}
	room.players = append(room.players, player)
	m.emitter.Join(groupName(gameRoomKind, code), connID)

	m.emitter.ToRoom(groupName(gameRoomKind, code), EvPlayerJoined, RosterPayload{
		Player:      *player,
		Players:     room.roster(),
		PlayerCount: len(room.players),
	})
	m.emitter.ToConn(connID, EvJoinSuccess, JoinSuccessPayload{Player: *player, Room: room.summary()})
	log.Printf("player %s joined game %s", player.Name, code)
	return nil
}

// Start moves a waiting room with at least one player into its first
// question and arms the auto-advance timer.
func (m *GameManager) Start(connID, code string) error {
	code = NormalizeCode(code)

	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[code]
	if !ok {
		return domain.ErrGameNotFound
	}
	if room.hostConn != connID {
		return domain.ErrUnauthorized
	}
	if room.status != domain.GameWaiting {
		return domain.ErrAlreadyStarted
	}
	if len(room.players) == 0 {
		return domain.ErrNoPlayers
	}

	room.status = domain.GameActive
	room.current = 0
	room.answers = make(map[string]domain.Answer)
	room.questionStartedAt = time.Now()

	m.emitter.ToRoom(groupName(gameRoomKind, code), EvGameStarted, GameStartedPayload{
		Status:               room.status,
		CurrentQuestionIndex: room.current,
		TotalQuestions:       len(room.quiz.Questions),
	})
	m.broadcastQuestionLocked(room)
	m.armQuestionTimerLocked(room)
	log.Printf("game %s started with %d players", code, len(room.players))
	return nil
}

// SubmitAnswer records a player's answer for the current question. Repeated
// submissions overwrite the record; scoring happens once, in the
// end-question pass, so duplicates can never double-score. The host receives
// a running answered-count.
func (m *GameManager) SubmitAnswer(connID, code, playerID string, answerIndex, timeRemaining int) error {
	code = NormalizeCode(code)

	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[code]
	if !ok {
		return domain.ErrGameNotFound
	}
	if room.status != domain.GameActive {
		return domain.ErrInvalidState
	}
	player := room.findPlayer(playerID)
	if player == nil {
		return domain.ErrPlayerNotFound
	}
	if player.ConnID != connID {
		return domain.ErrUnauthorized
	}
	question := room.quiz.Questions[room.current]
	if answerIndex < 0 || answerIndex >= len(question.Options) {
		return domain.ErrOptionOutOfRange
	}
	if timeRemaining < 0 {
		timeRemaining = 0
	}
	if timeRemaining > question.TimeLimit {
		timeRemaining = question.TimeLimit
	}

	room.answers[playerID] = domain.Answer{
		AnswerIndex:   answerIndex,
		TimeRemaining: timeRemaining,
		SubmittedAt:   time.Now(),
	}

	m.emitter.ToConn(room.hostConn, EvAnswerSubmitted, AnswerSubmittedPayload{
		AnswersCount: len(room.answers),
		TotalPlayers: len(room.players),
	})
	return nil
}

// EndQuestion closes the current question: it scores every recorded answer,
// reveals the correct option, and broadcasts the histogram and leaderboard.
func (m *GameManager) EndQuestion(connID, code string) error {
	code = NormalizeCode(code)

	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[code]
	if !ok {
		return domain.ErrGameNotFound
	}
	if room.hostConn != connID {
		return domain.ErrUnauthorized
	}
	if room.status != domain.GameActive {
		return domain.ErrInvalidState
	}
	m.endQuestionLocked(room)
	return nil
}

// NextQuestion advances past the results screen, either into the next
// question or into the finished state with a final leaderboard.
func (m *GameManager) NextQuestion(connID, code string) error {
	code = NormalizeCode(code)

	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[code]
	if !ok {
		return domain.ErrGameNotFound
	}
	if room.hostConn != connID {
		return domain.ErrUnauthorized
	}
	if room.status != domain.GameResults {
		return domain.ErrInvalidState
	}

	room.current++
	room.epoch++

	if room.current >= len(room.quiz.Questions) {
		room.status = domain.GameFinished
		m.emitter.ToRoom(groupName(gameRoomKind, code), EvGameFinished, GameFinishedPayload{
			Leaderboard:    Leaderboard(room.players),
			TotalQuestions: len(room.quiz.Questions),
		})
		log.Printf("game %s finished", code)
		return nil
	}

	room.status = domain.GameActive
	room.answers = make(map[string]domain.Answer)
	room.questionStartedAt = time.Now()
	m.broadcastQuestionLocked(room)
	m.armQuestionTimerLocked(room)
	return nil
}

// State sends the requesting connection a snapshot of the room, redacted
// unless the requester is the host.
func (m *GameManager) State(connID, code string) error {
	code = NormalizeCode(code)

	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[code]
	if !ok {
		return domain.ErrGameNotFound
	}
	var view any
	if room.hostConn == connID {
		view = room.hostView()
	} else {
		view = room.summary()
	}
	m.emitter.ToConn(connID, EvGameState, GameStatePayload{Room: view})
	return nil
}

// HandleDisconnect tears down rooms hosted by the connection and removes its
// player records everywhere else. Recorded scores are unaffected.
func (m *GameManager) HandleDisconnect(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for code, room := range m.rooms {
		if room.hostConn == connID {
			room.epoch++
			room.stopTimer()
			m.emitter.ToRoom(groupName(gameRoomKind, code), EvHostDisconnected, nil)
			m.emitter.DropRoom(groupName(gameRoomKind, code))
			delete(m.rooms, code)
			m.index.Drop(gameRoomKind, code)
			log.Printf("game %s ended, host disconnected", code)
			continue
		}
		for i, p := range room.players {
			if p.ConnID != connID {
				continue
			}
			room.players = append(room.players[:i], room.players[i+1:]...)
			m.emitter.ToRoom(groupName(gameRoomKind, code), EvPlayerLeft, RosterPayload{
				Player:      *p,
				Players:     room.roster(),
				PlayerCount: len(room.players),
			})
			log.Printf("player %s left game %s", p.Name, code)
			break
		}
	}
}

// RoomCount reports the number of live game rooms.
func (m *GameManager) RoomCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

// autoEndQuestion is the timer path into end-question. It re-validates state
// under the lock: a stale timer whose epoch no longer matches is a no-op.
func (m *GameManager) autoEndQuestion(code string, epoch int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[code]
	if !ok || room.status != domain.GameActive || room.epoch != epoch {
		return
	}
	m.endQuestionLocked(room)
}

func (m *GameManager) endQuestionLocked(room *gameRoom) {
	room.epoch++
	room.stopTimer()

	question := room.quiz.Questions[room.current]
	results := domain.QuestionResults{
		QuestionID:     question.ID,
		Question:       question.Text,
		Options:        question.Options,
		CorrectAnswer:  question.CorrectAnswer,
		PlayerAnswers:  make(map[string]int, len(room.answers)),
		CorrectPlayers: []string{},
		Stats:          AnswerHistogram(len(question.Options), room.answers),
	}
	for playerID, answer := range room.answers {
		results.PlayerAnswers[playerID] = answer.AnswerIndex
		if answer.AnswerIndex != question.CorrectAnswer {
			continue
		}
		results.CorrectPlayers = append(results.CorrectPlayers, playerID)
		// Players who left mid-question keep no score; skip them.
		if player := room.findPlayer(playerID); player != nil {
			player.Score += Score(true, answer.TimeRemaining, question.TimeLimit)
		}
	}

	room.status = domain.GameResults
	m.emitter.ToRoom(groupName(gameRoomKind, room.code), EvQuestionResults, QuestionResultsPayload{
		Results:              results,
		Leaderboard:          Leaderboard(room.players),
		CurrentQuestionIndex: room.current,
		TotalQuestions:       len(room.quiz.Questions),
	})
}

func (m *GameManager) broadcastQuestionLocked(room *gameRoom) {
	question := room.quiz.Questions[room.current]
	m.emitter.ToRoom(groupName(gameRoomKind, room.code), EvNewQuestion, NewQuestionPayload{
		ID:             question.ID,
		Question:       question.Text,
		Options:        question.Options,
		TimeLimit:      question.TimeLimit,
		QuestionNumber: room.current + 1,
		TotalQuestions: len(room.quiz.Questions),
	})
}

func (m *GameManager) armQuestionTimerLocked(room *gameRoom) {
	code, epoch := room.code, room.epoch
	limit := time.Duration(room.quiz.Questions[room.current].TimeLimit) * time.Second
	room.timer = time.AfterFunc(limit, func() {
		m.autoEndQuestion(code, epoch)
	})
}

func (m *GameManager) newCodeLocked() (string, error) {
	for {
		code, err := NewCode()
		if err != nil {
			return "", err
		}
		if _, exists := m.rooms[code]; !exists {
			return code, nil
		}
	}
}

func (r *gameRoom) findPlayer(playerID string) *domain.Player {
	for _, p := range r.players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

func (r *gameRoom) roster() []domain.Player {
	out := make([]domain.Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, *p)
	}
	return out
}

func (r *gameRoom) hostView() domain.GameRoomView {
	return domain.GameRoomView{
		ID:                   r.code,
		Quiz:                 r.quiz,
		HostName:             r.hostName,
		Players:              r.roster(),
		Status:               r.status,
		CurrentQuestionIndex: r.current,
		CreatedAt:            r.createdAt,
	}
}

func (r *gameRoom) summary() domain.GameRoomSummary {
	return domain.GameRoomSummary{
		ID:                   r.code,
		Quiz:                 r.quiz.Summary(),
		Players:              r.roster(),
		Status:               r.status,
		CurrentQuestionIndex: r.current,
	}
}

func (r *gameRoom) stopTimer() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}
