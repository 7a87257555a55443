package crawler

import (
	"context"
	"time"
)

// Sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	if ctx == nil {
		time.Sleep(d)
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Pacer enforces a fixed pause between consecutive requests: the first Wait
// returns immediately, every later one sleeps Interval first. A Pacer is not
// safe for concurrent use; one belongs to one sequential request chain.
type Pacer struct {
	Interval time.Duration
	// SleepFn replaces Sleep in tests.
	SleepFn func(context.Context, time.Duration) bool

	calls int
}

func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{Interval: interval}
}

func (p *Pacer) Wait(ctx context.Context) error {
	p.calls++
	if p.calls == 1 {
		return nil
	}
	sleep := p.SleepFn
	if sleep == nil {
		sleep = Sleep
	}
	if !sleep(ctx, p.Interval) {
		return ctx.Err()
	}
	return nil
}

// Calls reports how many requests the pacer has admitted.
func (p *Pacer) Calls() int {
	return p.calls
}
