package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/echomindr/echomindr/pkg/errors"
)

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     10 * time.Millisecond,
		OnStateChange: func(_ string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	boom := errors.New("boom")

	require.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	require.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	require.Equal(t, StateOpen, cb.GetState())

	err := cb.Execute(func() error { return nil })
	require.ErrorIs(t, err, ErrCircuitOpen)

	time.Sleep(15 * time.Millisecond)
	require.NoError(t, cb.Execute(func() error { return nil }))
	require.Equal(t, StateClosed, cb.GetState())
	require.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	calls := 0
	attempts, err := Retry(context.Background(), "load", RetryConfig{
		MaxAttempts: 5,
		Backoff:     Backoff{Initial: time.Millisecond},
		Retryable: func(err error) bool {
			return !errors.Is(err, apperrors.ErrInvalidInput)
		},
	}, func(context.Context, int) error {
		calls++
		return apperrors.InvalidInput("bad corpus")
	})
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
	require.NotErrorIs(t, err, ErrRetriesExhausted)
	require.Equal(t, 1, calls)
	require.Equal(t, 1, attempts)
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	var retried []int
	attempts, err := Retry(context.Background(), "load", RetryConfig{
		MaxAttempts: 3,
		Backoff:     Backoff{Initial: time.Millisecond},
		OnRetry: func(attempt int, err error, delay time.Duration) {
			require.Error(t, err)
			require.Positive(t, delay)
			retried = append(retried, attempt)
		},
	}, func(_ context.Context, attempt int) error {
		if attempt < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
	require.Equal(t, []int{1, 2}, retried)
}

func TestRetryExhausted(t *testing.T) {
	boom := errors.New("database is locked")
	attempts, err := Retry(context.Background(), "load", RetryConfig{
		MaxAttempts: 2,
		Backoff:     Backoff{Initial: time.Millisecond},
	}, func(context.Context, int) error { return boom })
	require.ErrorIs(t, err, ErrRetriesExhausted)
	require.ErrorIs(t, err, boom)
	require.Equal(t, 2, attempts)
}

func TestRetryAbortsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	_, err := Retry(ctx, "load", RetryConfig{
		MaxAttempts: 10,
		Backoff:     Backoff{Initial: time.Hour},
		OnRetry:     func(int, error, time.Duration) { cancel() },
	}, func(context.Context, int) error { return errors.New("transient") })
	require.ErrorIs(t, err, context.Canceled)
}

func TestBackoffDelayIsCapped(t *testing.T) {
	b := Backoff{Initial: 10 * time.Millisecond, Max: 50 * time.Millisecond, Multiplier: 2, Jitter: 0.1}
	require.InDelta(t, float64(10*time.Millisecond), float64(b.Delay(1)), float64(time.Millisecond))
	require.InDelta(t, float64(20*time.Millisecond), float64(b.Delay(2)), float64(2*time.Millisecond))
	require.Equal(t, 50*time.Millisecond, b.Delay(10))
}

func TestBounded(t *testing.T) {
	_, err := Bounded(context.Background(), 5*time.Millisecond, "slow", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return 1, nil
	})
	require.ErrorIs(t, err, apperrors.ErrTimeout)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	v, err := Bounded(context.Background(), time.Second, "fast", func(context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, v)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Bounded(ctx, time.Second, "cancelled", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return 0, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.NotErrorIs(t, err, apperrors.ErrTimeout)
}
