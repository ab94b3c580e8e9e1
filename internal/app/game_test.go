package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"quizcast/internal/app"
	"quizcast/internal/domain"
)

func TestGameLifecycleAndScoring(t *testing.T) {
	ctx := context.Background()
	games, rec := newTestGameManager(nil)

	code, err := games.Create(ctx, "host", "Alice", sampleQuiz(), "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	fastID := joinGame(t, games, rec, code, "c1")
	slowID := joinGame(t, games, rec, code, "c2")

	if err := games.Start("host", code); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := rec.named(app.EvNewQuestion); len(got) != 1 {
		t.Fatalf("expected one new-question broadcast, got %d", len(got))
	}

	// Correct with 10 of 15 seconds left: 1000 + 10*500/15.
	if err := games.SubmitAnswer("c1", code, fastID, 1, 10); err != nil {
		t.Fatalf("submit: %v", err)
	}
	// Wrong option, generous time.
	if err := games.SubmitAnswer("c2", code, slowID, 0, 14); err != nil {
		t.Fatalf("submit: %v", err)
	}

	counts, ok := rec.lastTo("host", app.EvAnswerSubmitted)
	if !ok {
		t.Fatalf("expected answer-submitted to host")
	}
	if p := counts.Payload.(app.AnswerSubmittedPayload); p.AnswersCount != 2 || p.TotalPlayers != 2 {
		t.Fatalf("expected 2/2 answered, got %+v", p)
	}

	if err := games.EndQuestion("host", code); err != nil {
		t.Fatalf("end question: %v", err)
	}

	results := rec.named(app.EvQuestionResults)
	if len(results) != 1 {
		t.Fatalf("expected one question-results broadcast, got %d", len(results))
	}
	payload := results[0].Payload.(app.QuestionResultsPayload)
	if payload.Results.CorrectAnswer != 1 {
		t.Fatalf("expected correct answer revealed as 1, got %d", payload.Results.CorrectAnswer)
	}
	if got := payload.Results.Stats; got[0] != 1 || got[1] != 1 || got[2] != 0 || got[3] != 0 {
		t.Fatalf("expected histogram [1 1 0 0], got %v", got)
	}
	if len(payload.Results.CorrectPlayers) != 1 || payload.Results.CorrectPlayers[0] != fastID {
		t.Fatalf("expected only %s correct, got %v", fastID, payload.Results.CorrectPlayers)
	}
	if payload.Leaderboard[0].ID != fastID || payload.Leaderboard[0].Score != 1333 {
		t.Fatalf("expected %s leading with 1333, got %+v", fastID, payload.Leaderboard[0])
	}
	if payload.Leaderboard[1].Score != 0 {
		t.Fatalf("expected wrong answer to score 0, got %+v", payload.Leaderboard[1])
	}

	if err := games.NextQuestion("host", code); err != nil {
		t.Fatalf("next question: %v", err)
	}
	finished := rec.named(app.EvGameFinished)
	if len(finished) != 1 {
		t.Fatalf("expected game-finished after last question, got %d", len(finished))
	}
	final := finished[0].Payload.(app.GameFinishedPayload)
	if final.Leaderboard[0].ID != fastID || final.Leaderboard[0].Rank != 1 {
		t.Fatalf("expected final leaderboard led by %s, got %+v", fastID, final.Leaderboard)
	}
}

func TestGameMultiQuestionPlayThrough(t *testing.T) {
	ctx := context.Background()
	games, rec := newTestGameManager(nil)

	quiz := sampleQuiz()
	quiz.Questions = append(quiz.Questions, domain.Question{
		Text:          "What is 3 * 3?",
		Options:       []string{"6", "9", "12"},
		CorrectAnswer: 1,
		TimeLimit:     10,
	})
	code, _ := games.Create(ctx, "host", "Alice", quiz, "")
	playerID := joinGame(t, games, rec, code, "c1")

	if err := games.Start("host", code); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := games.SubmitAnswer("c1", code, playerID, 1, 15); err != nil {
		t.Fatalf("submit q1: %v", err)
	}
	if err := games.EndQuestion("host", code); err != nil {
		t.Fatalf("end q1: %v", err)
	}

	// Advancing re-enters the active state with a fresh question and a
	// cleared answer map.
	if err := games.NextQuestion("host", code); err != nil {
		t.Fatalf("next after q1: %v", err)
	}
	questions := rec.named(app.EvNewQuestion)
	if len(questions) != 2 {
		t.Fatalf("expected second question broadcast, got %d", len(questions))
	}
	q2 := questions[1].Payload.(app.NewQuestionPayload)
	if q2.Question != "What is 3 * 3?" || q2.QuestionNumber != 2 {
		t.Fatalf("unexpected second question: %+v", q2)
	}

	if err := games.SubmitAnswer("c1", code, playerID, 1, 5); err != nil {
		t.Fatalf("submit q2: %v", err)
	}
	counts, _ := rec.lastTo("host", app.EvAnswerSubmitted)
	if p := counts.Payload.(app.AnswerSubmittedPayload); p.AnswersCount != 1 {
		t.Fatalf("expected answer map cleared between questions, got %+v", p)
	}
	if err := games.EndQuestion("host", code); err != nil {
		t.Fatalf("end q2: %v", err)
	}

	// Scores accumulate: 1500 for q1 (full time) plus 1250 for q2 (5/10).
	results := rec.named(app.EvQuestionResults)
	if len(results) != 2 {
		t.Fatalf("expected results per question, got %d", len(results))
	}
	second := results[1].Payload.(app.QuestionResultsPayload)
	if second.Leaderboard[0].Score != 2750 {
		t.Fatalf("expected accumulated score 2750, got %d", second.Leaderboard[0].Score)
	}

	if err := games.NextQuestion("host", code); err != nil {
		t.Fatalf("next after q2: %v", err)
	}
	if got := rec.named(app.EvGameFinished); len(got) != 1 {
		t.Fatalf("expected exactly one game-finished, got %d", len(got))
	}
	// The finished room accepts no further advances.
	if err := games.NextQuestion("host", code); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state after finish, got %v", err)
	}
}

func TestResubmitOverwritesWithoutDoubleScore(t *testing.T) {
	ctx := context.Background()
	games, rec := newTestGameManager(nil)

	code, _ := games.Create(ctx, "host", "Alice", sampleQuiz(), "")
	playerID := joinGame(t, games, rec, code, "c1")
	if err := games.Start("host", code); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := games.SubmitAnswer("c1", code, playerID, 1, 15); err != nil {
		t.Fatalf("submit: %v", err)
	}
	// Changed their mind; only this record survives.
	if err := games.SubmitAnswer("c1", code, playerID, 1, 9); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if err := games.EndQuestion("host", code); err != nil {
		t.Fatalf("end question: %v", err)
	}

	payload := rec.named(app.EvQuestionResults)[0].Payload.(app.QuestionResultsPayload)
	if got := payload.Leaderboard[0].Score; got != 1300 {
		t.Fatalf("expected single score 1300 from last submission, got %d", got)
	}
	if payload.Results.Stats[1] != 1 {
		t.Fatalf("expected one counted answer, got %v", payload.Results.Stats)
	}
}

func TestJoinRules(t *testing.T) {
	ctx := context.Background()
	games, rec := newTestGameManager(nil)

	code, _ := games.Create(ctx, "host", "Alice", sampleQuiz(), "")

	if err := games.Join("c1", "ZZZZZZ"); !errors.Is(err, domain.ErrGameNotFound) {
		t.Fatalf("expected game not found, got %v", err)
	}

	joinGame(t, games, rec, code, "c1")
	if err := games.Join("c1", code); !errors.Is(err, domain.ErrAlreadyJoined) {
		t.Fatalf("expected already joined, got %v", err)
	}

	// Codes are case-insensitive on input.
	if err := games.Join("c2", " "+strings.ToLower(code)+" "); err != nil {
		t.Fatalf("lowercase join: %v", err)
	}

	if err := games.Start("host", code); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := games.Join("c3", code); !errors.Is(err, domain.ErrAlreadyStarted) {
		t.Fatalf("expected already started, got %v", err)
	}
}

func TestStartRules(t *testing.T) {
	ctx := context.Background()
	games, rec := newTestGameManager(nil)

	code, _ := games.Create(ctx, "host", "Alice", sampleQuiz(), "")

	if err := games.Start("host", code); !errors.Is(err, domain.ErrNoPlayers) {
		t.Fatalf("expected no players, got %v", err)
	}
	joinGame(t, games, rec, code, "c1")
	if err := games.Start("c1", code); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := games.Start("host", code); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := games.Start("host", code); !errors.Is(err, domain.ErrAlreadyStarted) {
		t.Fatalf("expected already started, got %v", err)
	}
}

func TestSubmitAnswerValidation(t *testing.T) {
	ctx := context.Background()
	games, rec := newTestGameManager(nil)

	code, _ := games.Create(ctx, "host", "Alice", sampleQuiz(), "")
	playerID := joinGame(t, games, rec, code, "c1")

	if err := games.SubmitAnswer("c1", code, playerID, 1, 10); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state before start, got %v", err)
	}
	if err := games.Start("host", code); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := games.SubmitAnswer("c1", code, playerID, 4, 10); !errors.Is(err, domain.ErrOptionOutOfRange) {
		t.Fatalf("expected out of range, got %v", err)
	}
	if err := games.SubmitAnswer("c1", code, "nobody", 1, 10); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Fatalf("expected player not found, got %v", err)
	}
	// A connection cannot answer for someone else's player record.
	if err := games.SubmitAnswer("c9", code, playerID, 1, 10); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestAutoAdvanceAndStaleTimer(t *testing.T) {
	ctx := context.Background()
	games, rec := newTestGameManager(nil)

	quiz := sampleQuiz()
	quiz.Questions[0].TimeLimit = 1
	code, _ := games.Create(ctx, "host", "Alice", quiz, "")
	playerID := joinGame(t, games, rec, code, "c1")
	if err := games.Start("host", code); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := games.SubmitAnswer("c1", code, playerID, 1, 1); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Manual end beats the 1s timer; the expired timer must then be a no-op.
	if err := games.EndQuestion("host", code); err != nil {
		t.Fatalf("end question: %v", err)
	}
	time.Sleep(1500 * time.Millisecond)
	if got := rec.named(app.EvQuestionResults); len(got) != 1 {
		t.Fatalf("stale timer re-ended question: %d results broadcasts", len(got))
	}
}

func TestAutoAdvanceFiresWhenUnattended(t *testing.T) {
	ctx := context.Background()
	games, rec := newTestGameManager(nil)

	quiz := sampleQuiz()
	quiz.Questions[0].TimeLimit = 1
	code, _ := games.Create(ctx, "host", "Alice", quiz, "")
	joinGame(t, games, rec, code, "c1")
	if err := games.Start("host", code); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if len(rec.named(app.EvQuestionResults)) == 1 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("question never auto-ended")
}

func TestHostDisconnectTearsDownRoom(t *testing.T) {
	ctx := context.Background()
	games, rec := newTestGameManager(nil)

	code, _ := games.Create(ctx, "host", "Alice", sampleQuiz(), "")
	joinGame(t, games, rec, code, "c1")

	games.HandleDisconnect("host")
	if got := rec.named(app.EvHostDisconnected); len(got) != 1 {
		t.Fatalf("expected host-disconnected broadcast, got %d", len(got))
	}
	if games.RoomCount() != 0 {
		t.Fatalf("expected room torn down, got %d rooms", games.RoomCount())
	}
	if err := games.Join("c2", code); !errors.Is(err, domain.ErrGameNotFound) {
		t.Fatalf("expected game not found after teardown, got %v", err)
	}
}

func TestPlayerDisconnectKeepsScores(t *testing.T) {
	ctx := context.Background()
	games, rec := newTestGameManager(nil)

	code, _ := games.Create(ctx, "host", "Alice", sampleQuiz(), "")
	stayID := joinGame(t, games, rec, code, "c1")
	joinGame(t, games, rec, code, "c2")

	if err := games.Start("host", code); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := games.SubmitAnswer("c1", code, stayID, 1, 15); err != nil {
		t.Fatalf("submit: %v", err)
	}

	games.HandleDisconnect("c2")
	left := rec.named(app.EvPlayerLeft)
	if len(left) != 1 {
		t.Fatalf("expected one player-left, got %d", len(left))
	}
	if p := left[0].Payload.(app.RosterPayload); p.PlayerCount != 1 {
		t.Fatalf("expected roster of 1 after leave, got %+v", p)
	}

	if err := games.EndQuestion("host", code); err != nil {
		t.Fatalf("end question: %v", err)
	}
	payload := rec.named(app.EvQuestionResults)[0].Payload.(app.QuestionResultsPayload)
	if payload.Leaderboard[0].ID != stayID || payload.Leaderboard[0].Score != 1500 {
		t.Fatalf("expected remaining player scored, got %+v", payload.Leaderboard)
	}
}

func TestCreateFromCatalog(t *testing.T) {
	ctx := context.Background()
	games, rec := newTestGameManager(map[string]domain.Quiz{
		"quiz-1": *sampleQuiz(),
	})

	code, err := games.Create(ctx, "host", "Alice", nil, "quiz-1")
	if err != nil {
		t.Fatalf("create from catalog: %v", err)
	}
	created, ok := rec.lastTo("host", app.EvGameCreated)
	if !ok {
		t.Fatalf("expected game-created")
	}
	room := created.Payload.(app.GameCreatedPayload).Room
	if len(room.Quiz.Questions) != 1 || room.Quiz.Questions[0].Text != "What is 2 + 2?" {
		t.Fatalf("expected catalog quiz in room, got %+v", room.Quiz)
	}
	if code == "" || len(code) != app.CodeLength {
		t.Fatalf("expected %d-char code, got %q", app.CodeLength, code)
	}

	if _, err := games.Create(ctx, "host", "Alice", nil, "missing"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
	if _, err := games.Create(ctx, "host", "Alice", nil, ""); !errors.Is(err, domain.ErrInvalidQuiz) {
		t.Fatalf("expected invalid quiz with neither inline nor id, got %v", err)
	}
}

func TestStateRedactsForPlayers(t *testing.T) {
	ctx := context.Background()
	games, rec := newTestGameManager(nil)

	code, _ := games.Create(ctx, "host", "Alice", sampleQuiz(), "")
	joinGame(t, games, rec, code, "c1")

	if err := games.State("c1", code); err != nil {
		t.Fatalf("state: %v", err)
	}
	state, _ := rec.lastTo("c1", app.EvGameState)
	if _, ok := state.Payload.(app.GameStatePayload).Room.(domain.GameRoomSummary); !ok {
		t.Fatalf("expected redacted summary for player, got %T", state.Payload.(app.GameStatePayload).Room)
	}

	if err := games.State("host", code); err != nil {
		t.Fatalf("state: %v", err)
	}
	state, _ = rec.lastTo("host", app.EvGameState)
	if _, ok := state.Payload.(app.GameStatePayload).Room.(domain.GameRoomView); !ok {
		t.Fatalf("expected full view for host, got %T", state.Payload.(app.GameStatePayload).Room)
	}
}

// joinGame joins and returns the assigned player id.
func joinGame(t *testing.T, games *app.GameManager, rec *recorder, code, connID string) string {
	t.Helper()
	if err := games.Join(connID, code); err != nil {
		t.Fatalf("join %s: %v", connID, err)
	}
	success, ok := rec.lastTo(connID, app.EvJoinSuccess)
	if !ok {
		t.Fatalf("expected join-success for %s", connID)
	}
	return success.Payload.(app.JoinSuccessPayload).Player.ID
}
