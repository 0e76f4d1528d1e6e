package orchestrator

import (
	"context"
	"math"
	"math/rand"
	"time"
)

type RetryPolicy struct {
	MaxAttempts int
	Retryable   func(err error) bool

	MinBackoff time.Duration // default 1s
	MaxBackoff time.Duration // default 30s
	JitterFrac float64       // default 0.20
}

// ShouldRetry reports whether another attempt is allowed after `attempts` tries failed with err.
func (r RetryPolicy) ShouldRetry(attempts int, err error) bool {
	if r.MaxAttempts <= 0 || attempts >= r.MaxAttempts {
		return false
	}
	if r.Retryable == nil {
		return true
	}
	return r.Retryable(err)
}

// Backoff is exponential in the attempt number, capped at MaxBackoff, with symmetric jitter.
func (r RetryPolicy) Backoff(attempts int) time.Duration {
	minB := r.MinBackoff
	maxB := r.MaxBackoff
	j := r.JitterFrac
	if minB <= 0 {
		minB = 1 * time.Second
	}
	if maxB <= 0 {
		maxB = 30 * time.Second
	}
	if j <= 0 {
		j = 0.20
	}
	if attempts < 1 {
		attempts = 1
	}
	d := time.Duration(float64(minB) * math.Pow(2, float64(attempts-1)))
	if d > maxB {
		d = maxB
	}
	delta := float64(d) * j
	low := float64(d) - delta
	high := float64(d) + delta
	if low < 0 {
		low = 0
	}
	return time.Duration(low + rand.Float64()*(high-low))
}

// Retry runs fn until it succeeds, the policy gives up, or ctx ends.
// onRetry, when set, is called before each backoff sleep. It returns the attempts made and the last error.
func Retry(ctx context.Context, r RetryPolicy, fn func(ctx context.Context, attempt int) error, onRetry func(attempt int, err error, wait time.Duration)) (int, error) {
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = 1
	}
	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return attempts, err
		}
		attempts++
		err := fn(ctx, attempts)
		if err == nil {
			return attempts, nil
		}
		if ctx.Err() != nil || !r.ShouldRetry(attempts, err) {
			return attempts, err
		}
		wait := r.Backoff(attempts)
		if onRetry != nil {
			onRetry(attempts, err, wait)
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return attempts, ctx.Err()
		case <-t.C:
		}
	}
}
