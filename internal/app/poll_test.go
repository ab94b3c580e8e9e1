package app_test

import (
	"errors"
	"testing"

	"quizcast/internal/app"
	"quizcast/internal/domain"
)

func TestPollVoteTally(t *testing.T) {
	polls, rec := newTestPollManager()

	code, err := polls.Create("host", "Alice", samplePoll())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	p1 := joinPoll(t, polls, rec, code, "c1")
	p2 := joinPoll(t, polls, rec, code, "c2")
	p3 := joinPoll(t, polls, rec, code, "c3")

	if err := polls.Start("host", code); err != nil {
		t.Fatalf("start: %v", err)
	}

	mustVote(t, polls, "c1", code, p1, []int{0})
	mustVote(t, polls, "c2", code, p2, []int{0})
	mustVote(t, polls, "c3", code, p3, []int{1})

	updates := rec.named(app.EvPollResultsUpdated)
	if len(updates) != 3 {
		t.Fatalf("expected a tally per vote, got %d", len(updates))
	}
	last := updates[2].Payload.(domain.PollResults)
	if last.Stats[0] != 2 || last.Stats[1] != 1 || last.TotalVotes != 3 {
		t.Fatalf("expected [2 1] total 3, got %+v", last)
	}
	if last.VotedCount != 3 || last.ParticipantCount != 3 {
		t.Fatalf("expected 3/3 voted, got %+v", last)
	}

	// A revote replaces the previous selection, never adds to it.
	mustVote(t, polls, "c3", code, p3, []int{0})
	updates = rec.named(app.EvPollResultsUpdated)
	last = updates[len(updates)-1].Payload.(domain.PollResults)
	if last.Stats[0] != 3 || last.Stats[1] != 0 || last.TotalVotes != 3 {
		t.Fatalf("expected revote to move the vote, got %+v", last)
	}
}

func TestPollVoteValidation(t *testing.T) {
	polls, rec := newTestPollManager()

	code, _ := polls.Create("host", "Alice", samplePoll())
	p1 := joinPoll(t, polls, rec, code, "c1")

	if err := polls.SubmitVote("c1", code, p1, []int{0}); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state before start, got %v", err)
	}
	if err := polls.Start("host", code); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := polls.SubmitVote("c1", code, p1, nil); !errors.Is(err, domain.ErrEmptyVote) {
		t.Fatalf("expected empty vote, got %v", err)
	}
	if err := polls.SubmitVote("c1", code, p1, []int{0, 1}); !errors.Is(err, domain.ErrMultipleNotAllowed) {
		t.Fatalf("expected multiple not allowed, got %v", err)
	}
	if err := polls.SubmitVote("c1", code, p1, []int{7}); !errors.Is(err, domain.ErrOptionOutOfRange) {
		t.Fatalf("expected out of range, got %v", err)
	}
	if err := polls.SubmitVote("c1", code, "nobody", []int{0}); !errors.Is(err, domain.ErrNotJoined) {
		t.Fatalf("expected not joined, got %v", err)
	}
	if err := polls.SubmitVote("c9", code, p1, []int{0}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestPollMultiSelect(t *testing.T) {
	polls, rec := newTestPollManager()

	poll := samplePoll()
	poll.Options = []string{"Red", "Green", "Blue"}
	poll.AllowMultipleChoices = true
	code, _ := polls.Create("host", "Alice", poll)
	p1 := joinPoll(t, polls, rec, code, "c1")
	if err := polls.Start("host", code); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Duplicate indices collapse to one vote per option.
	mustVote(t, polls, "c1", code, p1, []int{0, 2, 0})

	updates := rec.named(app.EvPollResultsUpdated)
	last := updates[len(updates)-1].Payload.(domain.PollResults)
	if last.Stats[0] != 1 || last.Stats[1] != 0 || last.Stats[2] != 1 || last.TotalVotes != 2 {
		t.Fatalf("expected deduped multi-select [1 0 1], got %+v", last)
	}
	if last.VotedCount != 1 {
		t.Fatalf("expected one voter, got %d", last.VotedCount)
	}
}

func TestPollAnonymity(t *testing.T) {
	polls, rec := newTestPollManager()

	poll := samplePoll()
	poll.IsAnonymous = true
	code, _ := polls.Create("host", "Alice", poll)
	p1 := joinPoll(t, polls, rec, code, "c1")
	if err := polls.Start("host", code); err != nil {
		t.Fatalf("start: %v", err)
	}
	mustVote(t, polls, "c1", code, p1, []int{0})

	if got := rec.named(app.EvPollVotesUpdated); len(got) != 0 {
		t.Fatalf("anonymous poll leaked attributed votes: %d sends", len(got))
	}
}

func TestPollHostSeesAttributedVotes(t *testing.T) {
	polls, rec := newTestPollManager()

	code, _ := polls.Create("host", "Alice", samplePoll())
	p1 := joinPoll(t, polls, rec, code, "c1")
	if err := polls.Start("host", code); err != nil {
		t.Fatalf("start: %v", err)
	}
	mustVote(t, polls, "c1", code, p1, []int{1})

	votes, ok := rec.lastTo("host", app.EvPollVotesUpdated)
	if !ok {
		t.Fatalf("expected attributed votes for host")
	}
	payload := votes.Payload.(app.PollVotesPayload)
	if got := payload.Votes[p1]; len(got) != 1 || got[0] != 1 {
		t.Fatalf("expected %s -> [1], got %v", p1, payload.Votes)
	}
}

func TestPollCloseAndLateJoin(t *testing.T) {
	polls, rec := newTestPollManager()

	code, _ := polls.Create("host", "Alice", samplePoll())
	p1 := joinPoll(t, polls, rec, code, "c1")
	if err := polls.Start("host", code); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Late joiners are welcome while the poll runs.
	joinPoll(t, polls, rec, code, "c2")

	if err := polls.Close("c1", code); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized close, got %v", err)
	}
	if err := polls.Close("host", code); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := rec.named(app.EvPollClosed); len(got) != 1 {
		t.Fatalf("expected one poll-closed broadcast, got %d", len(got))
	}

	if err := polls.SubmitVote("c1", code, p1, []int{0}); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected vote after close rejected, got %v", err)
	}
	if err := polls.Join("c3", code); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected join after close rejected, got %v", err)
	}
}

func TestPollParticipantLeaveDropsVote(t *testing.T) {
	polls, rec := newTestPollManager()

	code, _ := polls.Create("host", "Alice", samplePoll())
	p1 := joinPoll(t, polls, rec, code, "c1")
	p2 := joinPoll(t, polls, rec, code, "c2")
	if err := polls.Start("host", code); err != nil {
		t.Fatalf("start: %v", err)
	}
	mustVote(t, polls, "c1", code, p1, []int{0})
	mustVote(t, polls, "c2", code, p2, []int{1})

	polls.HandleDisconnect("c2")
	if err := polls.Close("host", code); err != nil {
		t.Fatalf("close: %v", err)
	}

	final := rec.named(app.EvPollClosed)[0].Payload.(domain.PollResults)
	if final.Stats[0] != 1 || final.Stats[1] != 0 || final.TotalVotes != 1 {
		t.Fatalf("expected departed vote dropped, got %+v", final)
	}
	if final.ParticipantCount != 1 || final.VotedCount != 1 {
		t.Fatalf("expected roster of 1, got %+v", final)
	}
}

func joinPoll(t *testing.T, polls *app.PollManager, rec *recorder, code, connID string) string {
	t.Helper()
	if err := polls.Join(connID, code); err != nil {
		t.Fatalf("join %s: %v", connID, err)
	}
	success, ok := rec.lastTo(connID, app.EvPollJoinSuccess)
	if !ok {
		t.Fatalf("expected poll-join-success for %s", connID)
	}
	return success.Payload.(app.PollJoinSuccessPayload).Participant.ID
}

func mustVote(t *testing.T, polls *app.PollManager, connID, code, participantID string, selected []int) {
	t.Helper()
	if err := polls.SubmitVote(connID, code, participantID, selected); err != nil {
		t.Fatalf("vote %s: %v", connID, err)
	}
}
