package limiters

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// ErrSendGateUnavailable wraps backend failures of a send gate.
var ErrSendGateUnavailable = errors.New("send gate unavailable")

// SendGate bounds how often a code may be sent per key. Allow returns false
// without mutating state when the previous send is younger than the
// interval; otherwise it records now as the last send and returns true.
type SendGate interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisSendGate stores lastSentAt as a key that expires after the interval.
// SET NX makes check-and-record a single atomic command.
type RedisSendGate struct {
	redis    redis.UniversalClient
	prefix   string
	interval time.Duration
	now      func() time.Time
}

// NewRedisSendGate returns a gate keyed under prefix. A non-positive
// interval disables gating.
func NewRedisSendGate(redisClient redis.UniversalClient, prefix string, interval time.Duration) *RedisSendGate {
	if prefix == "" {
		prefix = "gv"
	}
	return &RedisSendGate{
		redis:    redisClient,
		prefix:   prefix,
		interval: interval,
		now:      time.Now,
	}
}

// Allow implements [SendGate].
func (g *RedisSendGate) Allow(ctx context.Context, key string) (bool, error) {
	if g == nil || g.interval <= 0 {
		return true, nil
	}
	ok, err := g.redis.SetNX(ctx, g.prefix+":gate:"+key, g.now().UnixNano(), g.interval).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrSendGateUnavailable, err)
	}
	return ok, nil
}

// MemorySendGate keeps lastSentAt in a process-local go-cache. Suitable for
// single-instance deployments and tests.
type MemorySendGate struct {
	mu       sync.Mutex
	entries  *gocache.Cache
	interval time.Duration
	now      func() time.Time
}

// NewMemorySendGate returns an in-process gate. now may be nil.
func NewMemorySendGate(interval time.Duration, now func() time.Time) *MemorySendGate {
	if now == nil {
		now = time.Now
	}
	cleanup := interval
	if cleanup < time.Minute {
		cleanup = time.Minute
	}
	return &MemorySendGate{
		entries:  gocache.New(interval, cleanup),
		interval: interval,
		now:      now,
	}
}

// Allow implements [SendGate].
func (g *MemorySendGate) Allow(_ context.Context, key string) (bool, error) {
	if g == nil || g.interval <= 0 {
		return true, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if v, found := g.entries.Get(key); found {
		if last, ok := v.(time.Time); ok && now.Sub(last) < g.interval {
			return false, nil
		}
	}
	g.entries.Set(key, now, g.interval)
	return true, nil
}
