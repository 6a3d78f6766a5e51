package crawler

import (
	"context"
	"time"
)

// Sleeper abstracts how the crawler waits, so tests can record delays
// instead of sleeping.
type Sleeper interface {
	Pause(ctx context.Context, delay time.Duration)
}

type timerSleeper struct{}

// NewTimerSleeper returns a Sleeper backed by a real timer that honors
// context cancellation.
func NewTimerSleeper() Sleeper {
	return &timerSleeper{}
}

func (s *timerSleeper) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
