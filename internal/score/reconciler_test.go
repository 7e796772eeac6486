package score_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"trivia-league-service/internal/domain"
	"trivia-league-service/internal/gateway"
	"trivia-league-service/internal/infra/memory"
	"trivia-league-service/internal/score"
)

func TestReconcileAwardsPointsOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStateStore()
	r := score.NewReconciler(store, 3, nil)

	profile, err := r.Reconcile(ctx, "u1", "quiz-1", 20)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if profile.Score != 20 || profile.LeagueScore != 20 || !profile.Completed("quiz-1") {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	// Duplicate retry with the same idempotency key is benign.
	profile, err = r.Reconcile(ctx, "u1", "quiz-1", 20)
	if !errors.Is(err, domain.ErrAlreadyCompleted) {
		t.Fatalf("expected ErrAlreadyCompleted, got %v", err)
	}
	if profile.Score != 20 {
		t.Fatalf("duplicate changed score: %+v", profile)
	}
}

func TestReconcileSeparateQuizzesAccumulate(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStateStore()
	r := score.NewReconciler(store, 3, nil)

	if _, err := r.Reconcile(ctx, "u1", "quiz-1", 20); err != nil {
		t.Fatalf("reconcile quiz-1: %v", err)
	}
	profile, err := r.Reconcile(ctx, "u1", "quiz-2", 30)
	if err != nil {
		t.Fatalf("reconcile quiz-2: %v", err)
	}
	if profile.Score != 50 {
		t.Fatalf("expected accumulated score 50, got %d", profile.Score)
	}
}

func TestConcurrentReconcileAppliesExactlyOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStateStore()
	r := score.NewReconciler(store, 10, nil)

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Reconcile(ctx, "u1", "quiz-1", 25)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	winners, losers := 0, 0
	for err := range results {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, domain.ErrAlreadyCompleted):
			losers++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if winners != 1 || losers != callers-1 {
		t.Fatalf("expected 1 winner and %d losers, got %d/%d", callers-1, winners, losers)
	}

	profile, err := r.Profile(ctx, "u1")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.Score != 25 {
		t.Fatalf("score applied more than once: %d", profile.Score)
	}
}

type conflictingStore struct {
	gateway.Store
}

func (s conflictingStore) Transact(ctx context.Context, keys []string, fn func(tx gateway.Tx) error) error {
	return gateway.ErrTxConflict
}

func (s conflictingStore) Set(ctx context.Context, key string, value any, merge bool) error {
	return nil
}

func TestExhaustedRetriesSurfaceSyncFailed(t *testing.T) {
	r := score.NewReconciler(conflictingStore{}, 3, nil)
	_, err := r.Reconcile(context.Background(), "u1", "quiz-1", 10)
	if !errors.Is(err, domain.ErrSyncFailed) {
		t.Fatalf("expected ErrSyncFailed, got %v", err)
	}
}

func TestReconcilePublishesScoreEvent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStateStore()
	r := score.NewReconciler(store, 3, nil)

	ch, cancel, err := store.Subscribe(ctx, gateway.ScoreEventsKey)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	if _, err := r.Reconcile(ctx, "u1", "quiz-1", 15); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	select {
	case payload := <-ch:
		if len(payload) == 0 {
			t.Fatalf("empty score event payload")
		}
	default:
		t.Fatalf("no score event published")
	}
}

func TestProfileForUnknownUserIsZero(t *testing.T) {
	r := score.NewReconciler(memory.NewStateStore(), 3, nil)
	profile, err := r.Profile(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.UserID != "ghost" || profile.Score != 0 {
		t.Fatalf("unexpected zero profile: %+v", profile)
	}
}
