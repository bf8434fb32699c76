package model

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedModel throttles calls to an underlying Model with a token bucket.
type RateLimitedModel struct {
	next    Model
	limiter *rate.Limiter
}

// RateLimited wraps m so every Generate call first waits for limiter. A nil
// limiter returns m unchanged.
func RateLimited(m Model, limiter *rate.Limiter) Model {
	if limiter == nil {
		return m
	}
	return &RateLimitedModel{next: m, limiter: limiter}
}

// NewLimiter builds a limiter allowing rpm requests per minute with the given
// burst. rpm <= 0 yields nil (unlimited).
func NewLimiter(rpm float64, burst int) *rate.Limiter {
	if rpm <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rpm/60.0), burst)
}

// Generate implements Model.
func (m *RateLimitedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	if err := m.limiter.Wait(ctx); err != nil {
		respCh := make(chan Response)
		errCh := make(chan error, 1)
		errCh <- fmt.Errorf("rate limit wait: %w", err)
		close(respCh)
		close(errCh)
		return respCh, errCh
	}
	return m.next.Generate(ctx, req)
}

// Info implements Model.
func (m *RateLimitedModel) Info() Info { return m.next.Info() }
