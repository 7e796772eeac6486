package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trivia-league-service/internal/domain"
)

// DefaultTxAttempts bounds optimistic-concurrency retries before a
// transaction is reported as ErrSyncFailed.
const DefaultTxAttempts = 3

// TransactWithRetry wraps Store.Transact with bounded retry on
// ErrTxConflict. Retries are invisible to the caller beyond latency;
// exhausting the budget surfaces domain.ErrSyncFailed. Any other error from
// fn or the store aborts immediately and is returned as-is, so named
// conflict outcomes (AlreadyCompleted, AlreadyMember) pass straight through.
func TransactWithRetry(ctx context.Context, store Store, attempts int, keys []string, fn func(tx Tx) error) error {
	if attempts <= 0 {
		attempts = DefaultTxAttempts
	}
	var err error
	for i := 0; i < attempts; i++ {
		err = store.Transact(ctx, keys, fn)
		if !errors.Is(err, ErrTxConflict) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i+1) * 5 * time.Millisecond):
		}
	}
	return fmt.Errorf("%w: %d conflicting attempts", domain.ErrSyncFailed, attempts)
}
