package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"trivia-league-service/internal/domain"
)

const globalLeaderboardKey = "leaderboard:global"

// Leaderboard maintains the global score ranking in a redis sorted set. It
// is written by the rank projector, never by the reconciler; the rest of
// the system only observes ranks.
type Leaderboard struct {
	client *redis.Client
}

func NewLeaderboard(client *redis.Client) *Leaderboard {
	return &Leaderboard{client: client}
}

// UpsertScore records a user's current total.
func (l *Leaderboard) UpsertScore(ctx context.Context, userID string, total int64) error {
	err := l.client.ZAdd(ctx, globalLeaderboardKey, redis.Z{
		Score:  float64(total),
		Member: userID,
	}).Err()
	if err != nil {
		return fmt.Errorf("upsert score: %w", err)
	}
	return nil
}

// Rank returns the user's 1-indexed global rank, or ErrNotFound for a user
// who has never scored.
func (l *Leaderboard) Rank(ctx context.Context, userID string) (int64, error) {
	rank, err := l.client.ZRevRank(ctx, globalLeaderboardKey, userID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("rank: %w", err)
	}
	return rank + 1, nil
}

// Top returns the highest-scoring n users in descending order.
func (l *Leaderboard) Top(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	results, err := l.client.ZRevRangeWithScores(ctx, globalLeaderboardKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("top: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, len(results))
	for i, result := range results {
		entries[i] = domain.LeaderboardEntry{
			Rank:   int64(i + 1),
			UserID: result.Member.(string),
			Score:  int64(result.Score),
		}
	}
	return entries, nil
}
