package redis

import (
	"context"
	"fmt"
	"time"

	"pinrelay/internal/types"

	"github.com/redis/go-redis/v9"
)

const (
	windowKeyNameTemplate = "_pinrelay_rwin_%s_%d"
)

// RateLimiter implements ports.RateLimiter with one counter key per (scope, window bucket).
type RateLimiter struct {
	cli *redis.Client
	now func() time.Time
}

func NewRateLimiter(cli *redis.Client) *RateLimiter {
	return &RateLimiter{cli: cli, now: time.Now}
}

func (l *RateLimiter) Acquire(ctx context.Context, scope string, ratePerWindow int, window time.Duration) (bool, error) {
	if ratePerWindow <= 0 || window <= 0 {
		return false, nil
	}
	bucket := l.now().UnixNano() / int64(window)
	cacheKey := getWindowKeyName(scope, bucket)

	// INCR is atomic, so concurrent callers each see a distinct count. Denied calls still
	// increment, which only pushes the counter further past the cap.
	count, err := l.cli.Incr(ctx, cacheKey).Result()
	if err != nil {
		return false, types.Err(types.ErrDataStoreAccess, err, "acquire %s", scope)
	}
	if count == 1 {
		if err := l.cli.Expire(ctx, cacheKey, 2*window).Err(); err != nil {
			return false, types.Err(types.ErrDataStoreAccess, err, "expire %s", scope)
		}
	}
	return count <= int64(ratePerWindow), nil
}

func getWindowKeyName(key string, bucket int64) string {
	return fmt.Sprintf(windowKeyNameTemplate, key, bucket)
}
