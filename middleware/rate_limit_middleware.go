package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"narpc/addr"
	"narpc/narpcerr"
)

// RateLimitMiddleware creates a rate limiter using the token bucket algorithm.
//
// Token bucket: tokens are added at rate r per second, up to a burst size.
// Each call consumes one token. If the bucket is empty, the call is
// rejected. Unlike a leaky bucket (constant drain rate), token bucket
// allows short bursts — more suitable for bursty call-issue patterns.
//
// CRITICAL: the limiter is created in the OUTER closure (once per middleware
// creation), NOT in the inner call function. If created per-call, every
// call would get a fresh full bucket, defeating the entire purpose of rate
// limiting.
//
// Parameters:
//   - r: token refill rate (tokens per second)
//   - burst: maximum bucket size (allows this many calls in a burst)
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst) // Shared across all calls
	return func(next CallFunc) CallFunc {
		return func(ctx context.Context, peer *addr.Address, id uint32, in, out any) error {
			if !limiter.Allow() {
				return narpcerr.Wrap(narpcerr.Fail, "rate limit exceeded")
			}
			return next(ctx, peer, id, in, out)
		}
	}
}
