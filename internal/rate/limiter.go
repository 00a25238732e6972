package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds fixed-window tuning.
type Config struct {
	MaxHits int
	Window  time.Duration
}

// Limiter counts hits per key in fixed windows using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, prefix string, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		prefix: prefix,
		config: cfg,
	}
}

// Hit records one hit for scope/subject and returns ErrRateLimited once the
// window holds more than MaxHits.
func (l *Limiter) Hit(ctx context.Context, scope, subject string) error {
	count, err := l.incrementWithTTL(ctx, l.key(scope, subject), l.config.Window)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxHits) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) key(scope, subject string) string {
	return l.prefix + ":" + scope + ":" + subject
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
