// ABOUTME: Exponential backoff for transient failures
// ABOUTME: Callers decide which errors are worth another attempt

// Package retry runs a fetch with bounded exponential backoff.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Config holds retry configuration.
type Config struct {
	MaxAttempts int           // Total attempts including the first (minimum 1)
	InitialWait time.Duration // Wait before the second attempt
	MaxWait     time.Duration // Upper bound for a single wait
	Multiplier  float64       // Backoff multiplier
	Jitter      float64       // Jitter factor (0-1)
}

// DefaultConfig returns three attempts backing off 1s then 2s.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		InitialWait: time.Second,
		MaxWait:     30 * time.Second,
		Multiplier:  2.0,
	}
}

// Backoff returns the wait after the given failed attempt (1-based).
func (c Config) Backoff(attempt int) time.Duration {
	multiplier := c.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	wait := float64(c.InitialWait) * math.Pow(multiplier, float64(attempt-1))
	if c.MaxWait > 0 && wait > float64(c.MaxWait) {
		wait = float64(c.MaxWait)
	}
	if c.Jitter > 0 {
		wait += wait * c.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(wait)
}

// Policy decides which failures are retried and observes each retry.
type Policy struct {
	ShouldRetry func(err error) bool
	OnRetry     func(attempt int, wait time.Duration, err error)
}

// DoWithResult executes fn until it succeeds, fails permanently, or runs out of attempts.
// The returned attempt count is the number of times fn ran.
func DoWithResult[T any](ctx context.Context, cfg Config, policy Policy, fn func(ctx context.Context) (T, error)) (T, int, error) {
	var result T
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		r, err := fn(ctx)
		if err == nil {
			return r, attempt, nil
		}

		if attempt >= maxAttempts || ctx.Err() != nil {
			return result, attempt, err
		}
		if policy.ShouldRetry != nil && !policy.ShouldRetry(err) {
			return result, attempt, err
		}

		wait := cfg.Backoff(attempt)
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, wait, err)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, attempt, err
		case <-timer.C:
		}
	}
}
