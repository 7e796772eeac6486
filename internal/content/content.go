// Package content supplies quiz definitions to the rest of the system. The
// authoring side is external; this package only loads, caches and polls.
package content

import (
	"context"
	"sort"
	"time"

	"trivia-league-service/internal/domain"
)

// Loader fetches quiz content from a backing store (e.g., postgres).
type Loader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error)
	// ListActive returns metadata (without answers) for quizzes whose
	// availability window is still open at now.
	ListActive(ctx context.Context, now time.Time) ([]domain.QuizSummary, error)
}

// Repository serves full definitions, typically a TTL cache in front of a
// Loader.
type Repository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error)
}

// StaticLoader is a map-backed Loader for tests, demos and offline mode.
type StaticLoader struct {
	quizzes map[string]domain.QuizDefinition
}

func NewStaticLoader(quizzes map[string]domain.QuizDefinition) *StaticLoader {
	return &StaticLoader{quizzes: quizzes}
}

func (l *StaticLoader) LoadQuiz(_ context.Context, quizID string) (domain.QuizDefinition, error) {
	if quiz, ok := l.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.QuizDefinition{}, domain.ErrQuizNotFound
}

func (l *StaticLoader) ListActive(_ context.Context, now time.Time) ([]domain.QuizSummary, error) {
	var active []domain.QuizSummary
	for _, quiz := range l.quizzes {
		if !quiz.Expired(now) {
			active = append(active, quiz.Summary())
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })
	return active, nil
}
