package processor

import (
	"context"
	"math"

	"golang.org/x/time/rate"
)

// RateLimiter throttles batch starts across all workers of a run.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter allowing perSecond batches with a burst of
// one per worker. A non-positive rate disables throttling.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if perSecond <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst <= 0 {
		burst = int(math.Max(1, math.Ceil(perSecond)))
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait waits until the rate limit allows another batch.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Limited reports whether the limiter throttles at all.
func (r *RateLimiter) Limited() bool {
	return r.limiter.Limit() != rate.Inf
}
