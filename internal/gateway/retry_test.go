package gateway

import (
	"context"
	"errors"
	"testing"

	"trivia-league-service/internal/domain"
)

type flakyStore struct {
	Store
	conflicts int
	calls     int
}

func (s *flakyStore) Transact(ctx context.Context, keys []string, fn func(tx Tx) error) error {
	s.calls++
	if s.calls <= s.conflicts {
		return ErrTxConflict
	}
	return fn(nil)
}

func TestTransactWithRetryRecoversFromConflicts(t *testing.T) {
	store := &flakyStore{conflicts: 2}
	ran := false
	err := TransactWithRetry(context.Background(), store, 3, nil, func(tx Tx) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if !ran || store.calls != 3 {
		t.Fatalf("expected 3 attempts with final success, got calls=%d ran=%v", store.calls, ran)
	}
}

func TestTransactWithRetryExhaustsToSyncFailed(t *testing.T) {
	store := &flakyStore{conflicts: 10}
	err := TransactWithRetry(context.Background(), store, 3, nil, func(tx Tx) error { return nil })
	if !errors.Is(err, domain.ErrSyncFailed) {
		t.Fatalf("expected ErrSyncFailed, got %v", err)
	}
	if store.calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", store.calls)
	}
}

func TestTransactWithRetryDoesNotRetryNamedOutcomes(t *testing.T) {
	store := &flakyStore{}
	err := TransactWithRetry(context.Background(), store, 3, nil, func(tx Tx) error {
		return domain.ErrAlreadyCompleted
	})
	if !errors.Is(err, domain.ErrAlreadyCompleted) {
		t.Fatalf("expected conflict outcome to pass through, got %v", err)
	}
	if store.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", store.calls)
	}
}
