// Package score converts a finished session into a durable score delta,
// applied exactly once per (user, quiz) pair.
package score

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"trivia-league-service/internal/domain"
	"trivia-league-service/internal/gateway"
)

// Reconciler applies quiz results to user profiles through gateway
// transactions. Global leaderboard rank is not computed here; it is
// maintained by the rank projector and merely observed on the profile.
type Reconciler struct {
	store    gateway.Store
	attempts int
	now      func() time.Time
	logger   *slog.Logger
}

func NewReconciler(store gateway.Store, attempts int, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		store:    store,
		attempts: attempts,
		now:      time.Now,
		logger:   logger,
	}
}

// Reconcile adds pointsEarned to the user's durable score, marking quizID
// completed, in a single transaction. The at-most-once guarantee holds
// under concurrent duplicate invocations: exactly one caller applies the
// delta, every other observes domain.ErrAlreadyCompleted together with the
// current profile (a benign outcome, not a failure). Transaction conflicts
// retry within the configured budget; exhaustion surfaces
// domain.ErrSyncFailed and leaves nothing half-applied, so the caller may
// retry with the same (userID, quizID) key.
func (r *Reconciler) Reconcile(ctx context.Context, userID, quizID string, pointsEarned int) (domain.UserProfile, error) {
	key := gateway.ProfileKey(userID)
	var profile domain.UserProfile

	err := gateway.TransactWithRetry(ctx, r.store, r.attempts, []string{key}, func(tx gateway.Tx) error {
		profile = domain.UserProfile{}
		if err := tx.Get(key, &profile); err != nil && !errors.Is(err, gateway.ErrKeyNotFound) {
			return fmt.Errorf("read profile: %w", err)
		}
		// Absent profiles initialize lazily at zero.
		profile.UserID = userID

		if profile.Completed(quizID) {
			return domain.ErrAlreadyCompleted
		}
		if profile.CompletedQuizIDs == nil {
			profile.CompletedQuizIDs = make(map[string]bool)
		}
		profile.CompletedQuizIDs[quizID] = true
		profile.Score += pointsEarned
		profile.LeagueScore += pointsEarned
		tx.Set(key, profile)
		return nil
	})
	if err != nil {
		return profile, err
	}

	r.publishScoreEvent(ctx, domain.ScoreEvent{
		UserID:     userID,
		QuizID:     quizID,
		Points:     pointsEarned,
		TotalScore: profile.Score,
		At:         r.now(),
	})
	return profile, nil
}

// Profile reads the current durable profile; a user who has never scored
// gets the zero profile.
func (r *Reconciler) Profile(ctx context.Context, userID string) (domain.UserProfile, error) {
	var profile domain.UserProfile
	err := r.store.Get(ctx, gateway.ProfileKey(userID), &profile)
	if errors.Is(err, gateway.ErrKeyNotFound) {
		return domain.UserProfile{UserID: userID}, nil
	}
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("read profile: %w", err)
	}
	profile.UserID = userID
	return profile, nil
}

// publishScoreEvent feeds the rank projector. Fire-and-forget: failures are
// logged, never surfaced, and never undo the committed reconciliation.
func (r *Reconciler) publishScoreEvent(ctx context.Context, ev domain.ScoreEvent) {
	if err := r.store.Set(ctx, gateway.ScoreEventsKey, ev, false); err != nil {
		r.logger.Warn("score event publish failed", "user", ev.UserID, "quiz", ev.QuizID, "error", err)
	}
}
