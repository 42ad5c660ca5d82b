package search

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/helixir/paper-sharing-service/internal/domain"
)

// RateLimiter is a token bucket guarding calls to the title suggester. It is
// safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter allowing ratePerSecond sustained calls and
// bursts of up to burst calls. A non-positive rate disables limiting.
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	limit := rate.Limit(ratePerSecond)
	if ratePerSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(limit, burst)}
}

// Acquire takes a token, waiting at most maxWait for it. When the token would
// arrive later than maxWait it returns a domain.RateLimitError without
// consuming it.
func (r *RateLimiter) Acquire(ctx context.Context, maxWait time.Duration) error {
	res := r.limiter.Reserve()
	if !res.OK() {
		return domain.NewRateLimitError("llm", maxWait)
	}

	delay := res.Delay()
	if delay == 0 {
		return nil
	}
	if delay > maxWait {
		res.Cancel()
		return domain.NewRateLimitError("llm", delay)
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		res.Cancel()
		return ctx.Err()
	}
}
