package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"quizcast/internal/domain"
)

func TestQuizCatalogCaches(t *testing.T) {
	loader := &countingLoader{
		QuizLoader: NewStaticQuizLoader(map[string]domain.Quiz{"quiz-1": sampleQuiz()}),
	}
	catalog := NewQuizCatalog(loader, time.Minute)

	if _, err := catalog.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}

	// Second call hits the cache.
	if _, err := catalog.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
}

func TestQuizCatalogExpires(t *testing.T) {
	loader := &countingLoader{
		QuizLoader: NewStaticQuizLoader(map[string]domain.Quiz{"quiz-1": sampleQuiz()}),
	}
	catalog := NewQuizCatalog(loader, time.Minute)

	now := time.Now()
	catalog.clock = func() time.Time { return now }

	_, _ = catalog.GetQuiz(context.Background(), "quiz-1")
	// Jitter extends TTL by at most 10%; two minutes is safely past expiry.
	catalog.clock = func() time.Time { return now.Add(2 * time.Minute) }
	_, _ = catalog.GetQuiz(context.Background(), "quiz-1")

	if loader.calls != 2 {
		t.Fatalf("expected reload after expiry, got %d calls", loader.calls)
	}
}

func TestQuizCatalogMiss(t *testing.T) {
	catalog := NewQuizCatalog(NewStaticQuizLoader(nil), time.Minute)
	if _, err := catalog.GetQuiz(context.Background(), "missing"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}

type countingLoader struct {
	QuizLoader
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	l.calls++
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "quiz-1",
		Title: "Arithmetic",
		Questions: []domain.Question{
			{
				ID:            "q1",
				Text:          "What is 2 + 2?",
				Options:       []string{"3", "4"},
				CorrectAnswer: 1,
				TimeLimit:     15,
			},
		},
	}
}
