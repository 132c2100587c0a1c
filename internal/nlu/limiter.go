package nlu

import (
	"sync"
	"time"
)

// MinCallInterval is the global spacing between outbound AI calls.
const MinCallInterval = 2 * time.Second

// Limiter delays over-rate calls instead of dropping them. Free-form
// utterances resolve on their own goroutines, so Wait serializes callers
// with a lock held across the whole check-sleep-record sequence; the clock
// and sleeper are injectable for deterministic tests.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

func NewLimiter(interval time.Duration) *Limiter {
	if interval <= 0 {
		interval = MinCallInterval
	}
	return &Limiter{
		interval: interval,
		now:      time.Now,
		sleep:    time.Sleep,
	}
}

// Wait blocks until the next call is allowed and records it. Concurrent
// callers are admitted one at a time, each spaced a full interval after
// the previous one.
func (l *Limiter) Wait() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.last.IsZero() {
		if elapsed := l.now().Sub(l.last); elapsed < l.interval {
			l.sleep(l.interval - elapsed)
		}
	}
	l.last = l.now()
}
