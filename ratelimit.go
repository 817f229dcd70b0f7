package resilientclient

import (
	"context"

	"golang.org/x/time/rate"
)

// waitRateLimit blocks until the per-host token bucket admits this call,
// respecting ctx's deadline. It runs before the breaker gate and never
// itself counts as a breaker outcome or a retry attempt.
func waitRateLimit(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}
