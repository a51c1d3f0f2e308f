package papersources

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/helixir/paper-feed-service/internal/domain"
)

// RateLimiter is the token bucket one HTTPClient draws from before every
// attempt, retries included. It is safe for concurrent use.
type RateLimiter struct {
	source  string
	limiter *rate.Limiter
}

// NewRateLimiter sustains perSecond requests with the given burst. A negative
// rate disables limiting; a burst below one is raised to one.
func NewRateLimiter(source string, perSecond float64, burst int) *RateLimiter {
	limit := rate.Limit(perSecond)
	if perSecond < 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{source: source, limiter: rate.NewLimiter(limit, burst)}
}

// Wait blocks until a token is available. When ctx's deadline would pass
// first it returns a *domain.RateLimitError carrying the delay instead of
// sleeping; cancellation returns ctx.Err(). Either way the token is given
// back.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	res := r.limiter.Reserve()
	delay := res.Delay()
	if delay == 0 {
		return nil
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
		res.Cancel()
		return domain.NewRateLimitError(r.source, delay)
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

// Allow takes a token if one is available now.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}
