package ports

import (
	"context"
	"time"
)

// RateLimiter is a fixed-window counter shared by all instances using the same backend.
type RateLimiter interface {
	// Acquire attempts a slot in the given scope for the provided window.
	// ratePerWindow is the maximum allowed **successful** acquires in the window.
	// Returns (true,nil) if granted; (false,nil) if rate-limited.
	Acquire(ctx context.Context, scope string, ratePerWindow int, window time.Duration) (bool, error)
}
