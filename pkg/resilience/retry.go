package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// ErrRetriesExhausted wraps the last error once every attempt has failed.
var ErrRetriesExhausted = errors.New("retries exhausted")

// Backoff spaces attempts exponentially with symmetric jitter.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

func (b Backoff) withDefaults() Backoff {
	if b.Initial <= 0 {
		b.Initial = 100 * time.Millisecond
	}
	if b.Max <= 0 {
		b.Max = 10 * time.Second
	}
	if b.Multiplier <= 0 {
		b.Multiplier = 2.0
	}
	if b.Jitter <= 0 {
		b.Jitter = 0.1
	}
	return b
}

// Delay is the wait after the given failed attempt, counting from 1. It
// never exceeds Max and never drops below zero.
func (b Backoff) Delay(attempt int) time.Duration {
	b = b.withDefaults()
	if attempt < 1 {
		attempt = 1
	}
	d := float64(b.Initial) * math.Pow(b.Multiplier, float64(attempt-1))
	d += d * b.Jitter * (2*rand.Float64() - 1)
	if d > float64(b.Max) {
		d = float64(b.Max)
	}
	if d < 0 {
		d = float64(b.Initial)
	}
	return time.Duration(d)
}

// RetryConfig bounds an operation to MaxAttempts tries. Retryable, when
// set, decides whether an error deserves another try. OnRetry runs before
// each backoff wait.
type RetryConfig struct {
	MaxAttempts int
	Backoff     Backoff
	Retryable   func(error) bool
	OnRetry     func(attempt int, err error, delay time.Duration)
}

// Retry calls fn with the attempt number until it succeeds, returns a
// non-retryable error, runs out of attempts or ctx is done. It reports how
// many attempts were made.
func Retry(ctx context.Context, name string, cfg RetryConfig, fn func(ctx context.Context, attempt int) error) (int, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	var lastErr error
	for attempt := 1; ; attempt++ {
		lastErr = fn(ctx, attempt)
		switch {
		case lastErr == nil:
			return attempt, nil
		case cfg.Retryable != nil && !cfg.Retryable(lastErr):
			return attempt, lastErr
		case attempt >= cfg.MaxAttempts:
			return attempt, fmt.Errorf("%s: %w after %d attempts: %w", name, ErrRetriesExhausted, attempt, lastErr)
		case ctx.Err() != nil:
			return attempt, fmt.Errorf("%s: retry aborted: %w", name, ctx.Err())
		}

		delay := cfg.Backoff.Delay(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, lastErr, delay)
		}
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return attempt, fmt.Errorf("%s: retry aborted during backoff: %w", name, ctx.Err())
		}
	}
}
