package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"trivia-league-service/internal/domain"
	"trivia-league-service/internal/gateway"
)

// Board is the slice of the leaderboard the projector writes to.
type Board interface {
	UpsertScore(ctx context.Context, userID string, total int64) error
	Rank(ctx context.Context, userID string) (int64, error)
}

// RankProjector consumes score events and projects them into the global
// leaderboard, then folds the observed rank back onto the user's profile.
// Ranks are eventually consistent; reconciliation never waits for them.
type RankProjector struct {
	store  gateway.Store
	board  Board
	logger *slog.Logger
}

func NewRankProjector(store gateway.Store, board Board, logger *slog.Logger) *RankProjector {
	if logger == nil {
		logger = slog.Default()
	}
	return &RankProjector{store: store, board: board, logger: logger}
}

// Run blocks consuming score events until the context is cancelled or the
// subscription closes. Individual event failures are logged and skipped.
func (p *RankProjector) Run(ctx context.Context) error {
	events, cancel, err := p.store.Subscribe(ctx, gateway.ScoreEventsKey)
	if err != nil {
		return fmt.Errorf("subscribe score events: %w", err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-events:
			if !ok {
				return nil
			}
			if err := p.project(ctx, raw); err != nil {
				p.logger.Warn("rank projection failed", "error", err)
			}
		}
	}
}

func (p *RankProjector) project(ctx context.Context, raw []byte) error {
	var event domain.ScoreEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return fmt.Errorf("decode score event: %w", err)
	}

	if err := p.board.UpsertScore(ctx, event.UserID, int64(event.TotalScore)); err != nil {
		return err
	}
	rank, err := p.board.Rank(ctx, event.UserID)
	if err != nil {
		return err
	}

	patch := struct {
		GlobalRank int64 `json:"globalRank"`
	}{GlobalRank: rank}
	if err := p.store.Set(ctx, gateway.ProfileKey(event.UserID), patch, true); err != nil {
		return fmt.Errorf("write rank to profile: %w", err)
	}
	return nil
}
