package memory

import (
	"context"
	"errors"
	"testing"

	"trivia-league-service/internal/domain"
)

func TestLeaderboardOrderingAndRank(t *testing.T) {
	ctx := context.Background()
	board := NewLeaderboard()

	for user, total := range map[string]int64{"u1": 40, "u2": 90, "u3": 40} {
		if err := board.UpsertScore(ctx, user, total); err != nil {
			t.Fatalf("upsert %s: %v", user, err)
		}
	}

	top, err := board.Top(ctx, 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 3 || top[0].UserID != "u2" || top[1].UserID != "u1" || top[2].UserID != "u3" {
		t.Fatalf("unexpected ordering: %+v", top)
	}

	rank, err := board.Rank(ctx, "u3")
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if rank != 3 {
		t.Fatalf("expected rank 3, got %d", rank)
	}

	if _, err := board.Rank(ctx, "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
