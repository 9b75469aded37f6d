// Package infra provides shared infrastructure used by the upstream clients:
// an HTTP request helper with typed status errors and a token-bucket rate limiter.
package infra

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// --- Rate limiter ---

// RateLimiter is a token bucket over golang.org/x/time/rate, sized the way
// upstream quotas are documented: a burst of maxTokens, one token regained
// every refillRate.
type RateLimiter struct {
	lim        *rate.Limiter
	maxTokens  int
	refillRate time.Duration
	now        func() time.Time
}

// NewRateLimiter creates a rate limiter holding up to maxTokens tokens and
// regaining one token every refillRate.
func NewRateLimiter(maxTokens int, refillRate time.Duration) *RateLimiter {
	return &RateLimiter{
		lim:        rate.NewLimiter(rate.Every(refillRate), maxTokens),
		maxTokens:  maxTokens,
		refillRate: refillRate,
		now:        time.Now,
	}
}

// PerMinute creates a limiter allowing n requests per minute.
func PerMinute(n int) *RateLimiter {
	if n <= 0 {
		n = 1
	}
	return NewRateLimiter(n, time.Minute/time.Duration(n))
}

// Wait blocks until a token is available or context is cancelled. A wait
// that cannot finish before the context deadline fails immediately.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if err := rl.lim.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("rate limit: %w", err)
	}
	return nil
}

// TryAcquire takes a token if one is available.
func (rl *RateLimiter) TryAcquire() bool {
	return rl.lim.AllowN(rl.now(), 1)
}

// Tokens returns the tokens currently available.
func (rl *RateLimiter) Tokens() float64 {
	return rl.lim.TokensAt(rl.now())
}
