package app

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"quizcast/internal/domain"
)

// DefaultGraceDelay is how long a closed broadcast poll stays queryable
// before the slate is wiped, so late viewers can still fetch final results.
const DefaultGraceDelay = 30 * time.Second

// BroadcastManager owns the process-wide broadcast poll: a single room-less
// poll fanned out to every live connection. It is deliberately independent
// of the room-scoped poll machinery; the two only share naming conventions.
type BroadcastManager struct {
	emitter Emitter
	grace   time.Duration

	mu   sync.Mutex
	poll *broadcastPoll
}

type broadcastPoll struct {
	domain.Poll
	hostConn  string
	hostName  string
	status    domain.BroadcastStatus
	createdAt time.Time
	// participants is keyed by connection id: admission is per-connection,
	// not per-named-identity.
	participants map[string]*domain.Participant
	votes        map[int]int

	epoch int
	timer *time.Timer
}

func NewBroadcastManager(emitter Emitter, grace time.Duration) *BroadcastManager {
	if grace <= 0 {
		grace = DefaultGraceDelay
	}
	return &BroadcastManager{emitter: emitter, grace: grace}
}

// Create stages a broadcast poll without making it visible. Creating a new
// one while another exists silently replaces it.
func (m *BroadcastManager) Create(connID, hostName string, poll domain.Poll) error {
	if err := poll.Validate(); err != nil {
		return err
	}
	content := poll.Clone()
	content.ID = uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.poll != nil {
		m.poll.epoch++
		m.poll.stopTimer()
	}
	m.poll = &broadcastPoll{
		Poll:         content,
		hostConn:     connID,
		hostName:     hostName,
		status:       domain.BroadcastCreated,
		createdAt:    time.Now(),
		participants: make(map[string]*domain.Participant),
		votes:        make(map[int]int, len(content.Options)),
	}
	for i := range content.Options {
		m.poll.votes[i] = 0
	}

	m.emitter.ToConn(connID, EvBroadcastPollCreated, BroadcastPollCreatedPayload{Poll: m.poll.view()})
	log.Printf("broadcast poll created by %q: %s", hostName, content.Question)
	return nil
}

// Launch pushes the staged poll to every live connection and starts
// accepting joins and votes. Relaunching an active poll resets admissions.
func (m *BroadcastManager) Launch(connID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.poll == nil {
		return domain.ErrNoActivePoll
	}
	if m.poll.hostConn != connID {
		return domain.ErrUnauthorized
	}
	if m.poll.status == domain.BroadcastClosed {
		return domain.ErrInvalidState
	}

	m.poll.status = domain.BroadcastActive
	m.poll.participants = make(map[string]*domain.Participant)
	// A new epoch fences any earlier deadline whose callback already fired
	// and is waiting on the lock; Stop alone cannot un-schedule those.
	m.poll.epoch++

	m.emitter.ToAll(EvPollBroadcast, PollBroadcastPayload{Poll: m.poll.view()})

	if m.poll.TimeLimit > 0 {
		m.poll.stopTimer()
		epoch := m.poll.epoch
		m.poll.timer = time.AfterFunc(time.Duration(m.poll.TimeLimit)*time.Second, func() {
			m.autoClose(epoch)
		})
	}
	log.Printf("broadcast poll launched: %s", m.poll.Question)
	return nil
}

// Current answers get-current-poll with the live poll, or null when none is
// in flight. A freshly created poll stays invisible until launch; a closed
// one remains queryable until the grace-window wipe.
func (m *BroadcastManager) Current(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.poll == nil || m.poll.status == domain.BroadcastCreated {
		m.emitter.ToConn(connID, EvCurrentPollResponse, CurrentPollPayload{})
		return
	}
	view := m.poll.view()
	m.emitter.ToConn(connID, EvCurrentPollResponse, CurrentPollPayload{Poll: &view})
}

// Join admits a connection to the active poll, at most once.
func (m *BroadcastManager) Join(connID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.poll == nil || m.poll.status != domain.BroadcastActive {
		return domain.ErrNoActivePoll
	}
	if _, ok := m.poll.participants[connID]; ok {
		return domain.ErrAlreadyJoined
	}

	participant := &domain.Participant{
		ID:       uuid.NewString(),
		Name:     participantName(len(m.poll.participants) + 1),
		ConnID:   connID,
		JoinedAt: time.Now(),
	}
	m.poll.participants[connID] = participant

	m.emitter.ToConn(connID, EvPollBroadcast, PollBroadcastPayload{Poll: m.poll.view()})
	m.emitter.ToConn(connID, EvPollJoinSuccess, BroadcastJoinSuccessPayload{
		Participant:      *participant,
		Poll:             m.poll.view(),
		ParticipantCount: len(m.poll.participants),
	})
	log.Printf("%s joined broadcast poll", participant.Name)
	return nil
}

// Vote accepts one vote per joined participant and pushes the updated tally
// to every connection.
func (m *BroadcastManager) Vote(connID string, selected []int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.poll == nil || m.poll.status != domain.BroadcastActive {
		return domain.ErrNoActivePoll
	}
	participant, ok := m.poll.participants[connID]
	if !ok {
		return domain.ErrNotJoined
	}
	if participant.HasVoted {
		return domain.ErrAlreadyVoted
	}

	selected = dedupeOptions(selected)
	if len(selected) == 0 {
		return domain.ErrEmptyVote
	}
	if !m.poll.AllowMultipleChoices && len(selected) > 1 {
		return domain.ErrMultipleNotAllowed
	}
	for _, idx := range selected {
		if idx < 0 || idx >= len(m.poll.Options) {
			return domain.ErrOptionOutOfRange
		}
	}

	for _, idx := range selected {
		m.poll.votes[idx]++
	}
	participant.HasVoted = true

	results := m.poll.results()
	m.emitter.ToConn(connID, EvVoteSubmitted, VoteSubmittedPayload{Results: results})
	m.emitter.ToAll(EvPollResultsUpdated, results)
	log.Printf("broadcast vote submitted by %s", participant.Name)
	return nil
}

// Close finalizes the poll, pushes final results everywhere, and schedules
// the grace-window wipe.
func (m *BroadcastManager) Close(connID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.poll == nil {
		return domain.ErrNoActivePoll
	}
	if m.poll.hostConn != connID {
		return domain.ErrUnauthorized
	}
	m.closeLocked()
	return nil
}

func (m *BroadcastManager) autoClose(epoch int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.poll == nil || m.poll.status != domain.BroadcastActive || m.poll.epoch != epoch {
		return
	}
	m.closeLocked()
}

func (m *BroadcastManager) closeLocked() {
	poll := m.poll
	poll.epoch++
	poll.stopTimer()
	poll.status = domain.BroadcastClosed

	results := poll.results()
	m.emitter.ToConn(poll.hostConn, EvPollFinalResults, results)
	m.emitter.ToAll(EvPollBroadcastClosed, results)
	log.Printf("broadcast poll closed: %s", poll.Question)

	// Final results stay queryable for the grace window, then the slate is
	// wiped, but only if this poll is still the one installed.
	time.AfterFunc(m.grace, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.poll == poll {
			m.poll = nil
		}
	})
}

func (p *broadcastPoll) results() domain.PollResults {
	stats := make([]int, len(p.Options))
	total := 0
	for i := range p.Options {
		stats[i] = p.votes[i]
		total += p.votes[i]
	}
	return domain.PollResults{
		PollID:           p.ID,
		Question:         p.Question,
		Options:          p.Options,
		Stats:            stats,
		TotalVotes:       total,
		ParticipantCount: len(p.participants),
		IsAnonymous:      p.IsAnonymous,
	}
}

func (p *broadcastPoll) view() domain.BroadcastPollView {
	return domain.BroadcastPollView{
		Poll:      p.Poll,
		HostName:  p.hostName,
		Status:    p.status,
		CreatedAt: p.createdAt,
	}
}

func (p *broadcastPoll) stopTimer() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}
