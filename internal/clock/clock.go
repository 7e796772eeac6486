// Package clock provides the interval tick primitive shared by the session
// countdown and the content poller.
package clock

import (
	"context"
	"time"
)

// Tick invokes fn once per interval until fn returns false or ctx is done.
// The first invocation happens after one full interval, matching a countdown
// that starts at its configured limit.
func Tick(ctx context.Context, interval time.Duration, fn func() bool) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !fn() {
				return
			}
		}
	}
}

// Countdown runs fn once per second for at most limit invocations, stopping
// early when fn reports it is done. It is the driver for session timers.
type Countdown struct {
	Interval time.Duration // defaults to one second
}

// Run blocks until the countdown ends or ctx is canceled.
func (c Countdown) Run(ctx context.Context, fn func() bool) {
	interval := c.Interval
	if interval <= 0 {
		interval = time.Second
	}
	Tick(ctx, interval, fn)
}
