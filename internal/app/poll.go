package app

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"quizcast/internal/domain"
)

const pollRoomKind = "poll"

// PollManager owns every live room-scoped poll. It mirrors the game
// lifecycle with a single question: waiting -> active -> closed, and every
// vote rebroadcasts a running tally to the whole room.
type PollManager struct {
	emitter Emitter
	index   RoomIndex

	mu    sync.Mutex
	rooms map[string]*pollRoom
}

type pollRoom struct {
	code         string
	poll         domain.Poll
	hostConn     string
	hostName     string
	participants []*domain.Participant
	status       domain.PollStatus
	// votes is always attributed internally; anonymity is enforced as a
	// projection when payloads are rendered, never by dropping attribution.
	votes map[string][]int

	epoch     int
	timer     *time.Timer
	createdAt time.Time
}

func NewPollManager(emitter Emitter, index RoomIndex) *PollManager {
	return &PollManager{
		emitter: emitter,
		index:   index,
		rooms:   make(map[string]*pollRoom),
	}
}

// Create builds a poll room in the waiting state and returns its code.
func (m *PollManager) Create(connID, hostName string, poll domain.Poll) (string, error) {
	if err := poll.Validate(); err != nil {
		return "", err
	}
	content := poll.Clone()
	content.ID = uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()

	code, err := m.newCodeLocked()
	if err != nil {
		return "", err
	}
	room := &pollRoom{
		code:      code,
		poll:      content,
		hostConn:  connID,
		hostName:  hostName,
		status:    domain.PollWaiting,
		votes:     make(map[string][]int),
		createdAt: time.Now(),
	}
	m.rooms[code] = room
	m.index.MarkLive(pollRoomKind, code)
	m.emitter.Join(groupName(pollRoomKind, code), connID)
	m.emitter.ToConn(connID, EvPollCreated, PollCreatedPayload{PollCode: code, Room: room.hostView()})
	log.Printf("poll %s created by %q", code, hostName)
	return code, nil
}

// Join adds a participant. Late joiners are admitted while the poll is
// running; only a closed poll rejects new members.
func (m *PollManager) Join(connID, code string) error {
	code = NormalizeCode(code)

	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[code]
	if !ok {
		return domain.ErrPollNotFound
	}
	if room.status == domain.PollClosed {
		return domain.ErrInvalidState
	}
	for _, p := range room.participants {
		if p.ConnID == connID {
			return domain.ErrAlreadyJoined
		}
	}

	participant := &domain.Participant{
		ID:       uuid.NewString(),
		Name:     participantName(len(room.participants) + 1),
		ConnID:   connID,
		JoinedAt: time.Now(),
	}
	room.participants = append(room.participants, participant)
	m.emitter.Join(groupName(pollRoomKind, code), connID)

	m.emitter.ToRoom(groupName(pollRoomKind, code), EvParticipantJoined, ParticipantRosterPayload{
		Participant:      *participant,
		Participants:     room.roster(),
		ParticipantCount: len(room.participants),
	})
	m.emitter.ToConn(connID, EvPollJoinSuccess, PollJoinSuccessPayload{
		Participant: *participant,
		Room:        room.summary(),
	})
	log.Printf("participant %s joined poll %s", participant.Name, code)
	return nil
}

// Start opens the poll for votes and arms the auto-close timer when a time
// limit is set.
func (m *PollManager) Start(connID, code string) error {
	code = NormalizeCode(code)

	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[code]
	if !ok {
		return domain.ErrPollNotFound
	}
	if room.hostConn != connID {
		return domain.ErrUnauthorized
	}
	if room.status != domain.PollWaiting {
		return domain.ErrAlreadyStarted
	}

	room.status = domain.PollActive
	room.votes = make(map[string][]int)
	for _, p := range room.participants {
		p.HasVoted = false
	}

	m.emitter.ToRoom(groupName(pollRoomKind, code), EvPollStarted, PollStartedPayload{
		Status: room.status,
		Poll:   room.poll,
	})

	if room.poll.TimeLimit > 0 {
		epoch := room.epoch
		room.timer = time.AfterFunc(time.Duration(room.poll.TimeLimit)*time.Second, func() {
			m.autoClose(code, epoch)
		})
	}
	log.Printf("poll %s started", code)
	return nil
}

// SubmitVote validates and records a vote, then rebroadcasts the running
// tally to the whole room. A revote overwrites the previous selection; the
// tally is recomputed from the vote map, so nothing double-counts.
func (m *PollManager) SubmitVote(connID, code, participantID string, selected []int) error {
	code = NormalizeCode(code)

	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[code]
	if !ok {
		return domain.ErrPollNotFound
	}
	if room.status != domain.PollActive {
		return domain.ErrInvalidState
	}
	participant := room.findParticipant(participantID)
	if participant == nil {
		return domain.ErrNotJoined
	}
	if participant.ConnID != connID {
		return domain.ErrUnauthorized
	}

	selected = dedupeOptions(selected)
	if len(selected) == 0 {
		return domain.ErrEmptyVote
	}
	if !room.poll.AllowMultipleChoices && len(selected) > 1 {
		return domain.ErrMultipleNotAllowed
	}
	for _, idx := range selected {
		if idx < 0 || idx >= len(room.poll.Options) {
			return domain.ErrOptionOutOfRange
		}
	}

	room.votes[participantID] = selected
	participant.HasVoted = true

	m.broadcastResultsLocked(room, EvPollResultsUpdated)
	return nil
}

// Close finalizes the poll and broadcasts the final tally.
func (m *PollManager) Close(connID, code string) error {
	code = NormalizeCode(code)

	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[code]
	if !ok {
		return domain.ErrPollNotFound
	}
	if room.hostConn != connID {
		return domain.ErrUnauthorized
	}
	if room.status != domain.PollActive {
		return domain.ErrInvalidState
	}
	m.closeLocked(room)
	return nil
}

// State sends the requesting connection a snapshot of the poll room.
func (m *PollManager) State(connID, code string) error {
	code = NormalizeCode(code)

	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[code]
	if !ok {
		return domain.ErrPollNotFound
	}
	var view any
	if room.hostConn == connID {
		view = room.hostView()
	} else {
		view = room.summary()
	}
	m.emitter.ToConn(connID, EvPollState, PollStatePayload{Room: view})
	return nil
}

// HandleDisconnect tears down polls hosted by the connection and removes its
// participant records elsewhere. A departing participant's vote is removed
// with it so the tally never exceeds what the remaining roster could cast.
func (m *PollManager) HandleDisconnect(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for code, room := range m.rooms {
		if room.hostConn == connID {
			room.epoch++
			room.stopTimer()
			m.emitter.ToRoom(groupName(pollRoomKind, code), EvPollHostDisconnected, nil)
			m.emitter.DropRoom(groupName(pollRoomKind, code))
			delete(m.rooms, code)
			m.index.Drop(pollRoomKind, code)
			log.Printf("poll %s ended, host disconnected", code)
			continue
		}
		for i, p := range room.participants {
			if p.ConnID != connID {
				continue
			}
			room.participants = append(room.participants[:i], room.participants[i+1:]...)
			delete(room.votes, p.ID)
			m.emitter.ToRoom(groupName(pollRoomKind, code), EvParticipantLeft, ParticipantRosterPayload{
				Participant:      *p,
				Participants:     room.roster(),
				ParticipantCount: len(room.participants),
			})
			log.Printf("participant %s left poll %s", p.Name, code)
			break
		}
	}
}

// RoomCount reports the number of live poll rooms.
func (m *PollManager) RoomCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

func (m *PollManager) autoClose(code string, epoch int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[code]
	if !ok || room.status != domain.PollActive || room.epoch != epoch {
		return
	}
	m.closeLocked(room)
}

func (m *PollManager) closeLocked(room *pollRoom) {
	room.epoch++
	room.stopTimer()
	room.status = domain.PollClosed
	m.broadcastResultsLocked(room, EvPollClosed)
	log.Printf("poll %s closed", room.code)
}

// broadcastResultsLocked sends the redacted tally to the room and, for
// non-anonymous polls, the attributed vote map to the host alone. Redaction
// happens here, at the serialization boundary.
func (m *PollManager) broadcastResultsLocked(room *pollRoom, event string) {
	m.emitter.ToRoom(groupName(pollRoomKind, room.code), event, room.results())
	if !room.poll.IsAnonymous {
		votes := make(map[string][]int, len(room.votes))
		for id, selected := range room.votes {
			votes[id] = append([]int(nil), selected...)
		}
		m.emitter.ToConn(room.hostConn, EvPollVotesUpdated, PollVotesPayload{
			PollID: room.poll.ID,
			Votes:  votes,
		})
	}
}

func (m *PollManager) newCodeLocked() (string, error) {
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

func (r *pollRoom) results() domain.PollResults {
	stats, total := TallyVotes(len(r.poll.Options), r.votes)
	return domain.PollResults{
		PollID:           r.poll.ID,
		Question:         r.poll.Question,
		Options:          r.poll.Options,
		Stats:            stats,
		TotalVotes:       total,
		ParticipantCount: len(r.participants),
		VotedCount:       len(r.votes),
		IsAnonymous:      r.poll.IsAnonymous,
	}
}

func (r *pollRoom) findParticipant(id string) *domain.Participant {
	for _, p := range r.participants {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *pollRoom) roster() []domain.Participant {
	out := make([]domain.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, *p)
	}
	return out
}

func (r *pollRoom) hostView() domain.PollRoomView {
	return domain.PollRoomView{
		ID:           r.code,
		Poll:         r.poll,
		HostName:     r.hostName,
		Participants: r.roster(),
		Status:       r.status,
		CreatedAt:    r.createdAt,
	}
}

func (r *pollRoom) summary() domain.PollRoomSummary {
	return domain.PollRoomSummary{
		ID:           r.code,
		Poll:         r.poll,
		Participants: r.roster(),
		Status:       r.status,
	}
}

func (r *pollRoom) stopTimer() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}
