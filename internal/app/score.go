package app

import (
	"sort"

	"quizcast/internal/domain"
)

// Score returns the points awarded for one answer: a 1000-point base plus a
// time bonus of up to 500, linear in the fraction of the time limit left.
// Incorrect or missing answers score zero.
func Score(correct bool, timeRemaining, timeLimit int) int {
	if !correct || timeLimit <= 0 {
		return 0
	}
	if timeRemaining < 0 {
		timeRemaining = 0
	}
	if timeRemaining > timeLimit {
		timeRemaining = timeLimit
	}
	return 1000 + (timeRemaining*500)/timeLimit
}

// AnswerHistogram counts submitted answers per option index. Indices are
// validated at submission time, so every recorded answer lands in range.
func AnswerHistogram(optionCount int, answers map[string]domain.Answer) []int {
	stats := make([]int, optionCount)
	for _, answer := range answers {
		if answer.AnswerIndex >= 0 && answer.AnswerIndex < optionCount {
			stats[answer.AnswerIndex]++
		}
	}
	return stats
}

// TallyVotes folds a participant->selections map into a per-option histogram
// and a total. Out-of-range indices are skipped so a hostile payload can
// never corrupt the tally.
func TallyVotes(optionCount int, votes map[string][]int) ([]int, int) {
	stats := make([]int, optionCount)
	total := 0
	for _, selected := range votes {
		for _, idx := range selected {
			if idx >= 0 && idx < optionCount {
				stats[idx]++
				total++
			}
		}
	}
	return stats, total
}

// Leaderboard ranks players by descending score. The sort is stable, so ties
// keep encounter order and repeated computation yields identical rankings.
func Leaderboard(players []*domain.Player) []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(players))
	for _, p := range players {
		entries = append(entries, domain.LeaderboardEntry{ID: p.ID, Name: p.Name, Score: p.Score})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// dedupeOptions drops repeated indices while preserving order, so a
// multi-select vote counts each option at most once.
func dedupeOptions(selected []int) []int {
	seen := make(map[int]struct{}, len(selected))
	out := make([]int, 0, len(selected))
	for _, idx := range selected {
		if _, ok := seen[idx]; ok {
			continue
		}
		seen[idx] = struct{}{}
		out = append(out, idx)
	}
	return out
}
