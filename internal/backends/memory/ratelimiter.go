package memory

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a fixed-window counter per scope, local to the process.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]window
	now     func() time.Time
}

type window struct {
	bucket int64
	count  int
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		windows: make(map[string]window),
		now:     time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (l *RateLimiter) WithClock(clock func() time.Time) {
	if clock != nil {
		l.now = clock
	}
}

func (l *RateLimiter) Acquire(_ context.Context, scope string, ratePerWindow int, win time.Duration) (bool, error) {
	if ratePerWindow <= 0 || win <= 0 {
		return false, nil
	}
	bucket := l.now().UnixNano() / int64(win)

	l.mu.Lock()
	defer l.mu.Unlock()
	w := l.windows[scope]
	if w.bucket != bucket {
		w = window{bucket: bucket}
	}
	if w.count >= ratePerWindow {
		return false, nil
	}
	w.count++
	l.windows[scope] = w
	return true, nil
}
