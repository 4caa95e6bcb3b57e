// Package resilience provides retry with backoff for outbound API calls.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy controls retry behavior for a class of outbound calls.
type Policy struct {
	// Attempts is the total number of tries including the first. 1 disables
	// retries.
	Attempts int

	// BaseDelay is the sleep before the second attempt; each subsequent
	// retry doubles it, capped at MaxDelay. A random jitter of up to ±25%
	// is applied so concurrent callers don't retry in lockstep.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// Name tags retry log lines with the service being called.
	Name string
}

// DefaultPolicy suits webhook and REST API calls: three tries, half-second
// base delay, ten-second cap.
func DefaultPolicy(name string) Policy {
	return Policy{
		Attempts:  3,
		BaseDelay: 500 * time.Millisecond,
		MaxDelay:  10 * time.Second,
		Name:      name,
	}
}

// Do runs fn, retrying on retryable errors until the policy is exhausted or
// the context is canceled. The last error is returned.
func (p Policy) Do(ctx context.Context, fn func(context.Context) error) error {
	_, err := Run(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Run is the value-returning form of Policy.Do.
func Run[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 500 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 10 * time.Second
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !Retryable(err) || attempt == p.Attempts {
			break
		}

		zap.L().Warn("retrying call",
			zap.String("service", p.Name),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		timer := time.NewTimer(p.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

func (p Policy) delay(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	d += d * 0.25 * (rand.Float64()*2 - 1)
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}
