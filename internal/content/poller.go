package content

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"trivia-league-service/internal/clock"
	"trivia-league-service/internal/domain"
)

// Poller refreshes the active-quiz listing on a caller-supplied interval.
// Content refresh is fully decoupled from session state: a session started
// from a stale listing still runs to completion.
type Poller struct {
	loader   Loader
	interval time.Duration
	onUpdate func([]domain.QuizSummary)
	now      func() time.Time
	logger   *slog.Logger

	mu     sync.RWMutex
	active []domain.QuizSummary
}

// NewPoller builds a poller; onUpdate may be nil when callers only read
// snapshots via Active.
func NewPoller(loader Loader, interval time.Duration, onUpdate func([]domain.QuizSummary), logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		loader:   loader,
		interval: interval,
		onUpdate: onUpdate,
		now:      time.Now,
		logger:   logger,
	}
}

// Run refreshes once immediately, then on every interval until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	p.refresh(ctx)
	clock.Tick(ctx, p.interval, func() bool {
		p.refresh(ctx)
		return true
	})
}

// Active returns the latest snapshot of active quiz metadata.
func (p *Poller) Active() []domain.QuizSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]domain.QuizSummary, len(p.active))
	copy(out, p.active)
	return out
}

func (p *Poller) refresh(ctx context.Context) {
	active, err := p.loader.ListActive(ctx, p.now())
	if err != nil {
		// Keep the previous snapshot; a missing listing means "no new
		// content", not an outage for running sessions.
		p.logger.Warn("active quiz refresh failed", "error", err)
		return
	}

	p.mu.Lock()
	p.active = active
	p.mu.Unlock()

	if p.onUpdate != nil {
		p.onUpdate(active)
	}
}
