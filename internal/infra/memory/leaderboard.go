package memory

import (
	"context"
	"sort"
	"sync"

	"trivia-league-service/internal/domain"
)

// Leaderboard is the in-process ranking used when no redis is configured.
// Ties break by user ID so ranks stay deterministic.
type Leaderboard struct {
	mu     sync.RWMutex
	totals map[string]int64
}

func NewLeaderboard() *Leaderboard {
	return &Leaderboard{totals: make(map[string]int64)}
}

func (l *Leaderboard) UpsertScore(_ context.Context, userID string, total int64) error {
	l.mu.Lock()
	l.totals[userID] = total
	l.mu.Unlock()
	return nil
}

func (l *Leaderboard) Rank(_ context.Context, userID string) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, ok := l.totals[userID]; !ok {
		return 0, domain.ErrNotFound
	}
	for i, entry := range l.sortedLocked() {
		if entry.UserID == userID {
			return int64(i + 1), nil
		}
	}
	return 0, domain.ErrNotFound
}

func (l *Leaderboard) Top(_ context.Context, n int) ([]domain.LeaderboardEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	sorted := l.sortedLocked()
	if n > len(sorted) {
		n = len(sorted)
	}
	out := make([]domain.LeaderboardEntry, n)
	for i := 0; i < n; i++ {
		sorted[i].Rank = int64(i + 1)
		out[i] = sorted[i]
	}
	return out, nil
}

func (l *Leaderboard) sortedLocked() []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(l.totals))
	for userID, total := range l.totals {
		entries = append(entries, domain.LeaderboardEntry{UserID: userID, Score: total})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].UserID < entries[j].UserID
	})
	return entries
}
