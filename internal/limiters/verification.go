package limiters

import (
	"context"
	"errors"

	"github.com/MrEthical07/goVerify/internal/rate"
)

var (
	ErrVerificationRateLimited        = errors.New("verification rate limited")
	ErrVerificationLimiterUnavailable = errors.New("verification limiter unavailable")
)

const (
	scopeRequestIP = "vri"
	scopeSubmitIP  = "vsi"
)

// VerificationLimiter throttles code requests and submissions per client IP.
// A nil limiter allows everything.
type VerificationLimiter struct {
	window *rate.Limiter
}

func NewVerificationLimiter(window *rate.Limiter) *VerificationLimiter {
	if window == nil {
		return nil
	}
	return &VerificationLimiter{window: window}
}

func (l *VerificationLimiter) CheckRequest(ctx context.Context, ip string) error {
	return l.check(ctx, scopeRequestIP, ip)
}

func (l *VerificationLimiter) CheckSubmit(ctx context.Context, ip string) error {
	return l.check(ctx, scopeSubmitIP, ip)
}

func (l *VerificationLimiter) check(ctx context.Context, scope, ip string) error {
	if l == nil || ip == "" {
		return nil
	}
	err := l.window.Hit(ctx, scope, ip)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return ErrVerificationRateLimited
	default:
		return errors.Join(ErrVerificationLimiterUnavailable, err)
	}
}
