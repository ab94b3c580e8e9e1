package app_test

import (
	"sync"
	"time"

	"quizcast/internal/app"
	"quizcast/internal/domain"
	"quizcast/internal/infra/memory"
)

// emitted is one recorded send.
type emitted struct {
	Scope   string // "conn", "room", or "all"
	Target  string
	Event   string
	Payload any
}

// recorder is an in-memory Emitter capturing every send. Timer callbacks fire
// on their own goroutines, so access is mutex-guarded.
type recorder struct {
	mu     sync.Mutex
	events []emitted
}

func (r *recorder) ToConn(connID, event string, payload any) {
	r.append(emitted{Scope: "conn", Target: connID, Event: event, Payload: payload})
}

func (r *recorder) ToRoom(room, event string, payload any) {
	r.append(emitted{Scope: "room", Target: room, Event: event, Payload: payload})
}

func (r *recorder) ToAll(event string, payload any) {
	r.append(emitted{Scope: "all", Event: event, Payload: payload})
}

func (r *recorder) Join(room, connID string) {}
func (r *recorder) DropRoom(room string)     {}

func (r *recorder) append(e emitted) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// named returns every recorded send of one event, in order.
func (r *recorder) named(event string) []emitted {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []emitted
	for _, e := range r.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// lastTo returns the most recent send of event addressed to connID.
func (r *recorder) lastTo(connID, event string) (emitted, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		e := r.events[i]
		if e.Scope == "conn" && e.Target == connID && e.Event == event {
			return e, true
		}
	}
	return emitted{}, false
}

func newTestGameManager(quizzes map[string]domain.Quiz) (*app.GameManager, *recorder) {
	rec := &recorder{}
	catalog := memory.NewQuizCatalog(memory.NewStaticQuizLoader(quizzes), 5*time.Minute)
	return app.NewGameManager(rec, catalog, memory.NewRoomIndex()), rec
}

func newTestPollManager() (*app.PollManager, *recorder) {
	rec := &recorder{}
	return app.NewPollManager(rec, memory.NewRoomIndex()), rec
}

func sampleQuiz() *domain.Quiz {
	return &domain.Quiz{
		Title: "Arithmetic",
		Questions: []domain.Question{
			{
				Text:          "What is 2 + 2?",
				Options:       []string{"3", "4", "5", "6"},
				CorrectAnswer: 1,
				TimeLimit:     15,
			},
		},
	}
}

func samplePoll() domain.Poll {
	return domain.Poll{
		Question:  "Tabs or spaces?",
		Options:   []string{"Tabs", "Spaces"},
		TimeLimit: 0,
	}
}
