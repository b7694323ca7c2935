package llm

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimited caps the request rate of a wrapped generator. Callers block until a
// token is available or ctx ends.
type RateLimited struct {
	next    Generator
	limiter *rate.Limiter
}

// NewRateLimited allows perMinute requests per minute with a burst of one.
// perMinute <= 0 returns next unchanged.
func NewRateLimited(next Generator, perMinute int) Generator {
	if perMinute <= 0 {
		return next
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

func (r *RateLimited) Name() string { return r.next.Name() }

func (r *RateLimited) Stream(ctx context.Context, p Prompt, onDelta DeltaFunc) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.next.Stream(ctx, p, onDelta)
}
