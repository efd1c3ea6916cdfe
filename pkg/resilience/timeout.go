package resilience

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/echomindr/echomindr/pkg/errors"
)

// Bounded runs fn under a deadline of limit and returns its value. When the
// limit passes first the error wraps apperrors.ErrTimeout and
// context.DeadlineExceeded; fn keeps running in the background until it
// notices its context. A non-positive limit calls fn directly.
func Bounded[T any](ctx context.Context, limit time.Duration, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	if limit <= 0 {
		return fn(ctx)
	}
	boundedCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(boundedCtx)
		done <- outcome{v, err}
	}()

	var zero T
	select {
	case out := <-done:
		return out.value, out.err
	case <-boundedCtx.Done():
		if ctx.Err() != nil {
			return zero, fmt.Errorf("%s: %w", name, ctx.Err())
		}
		return zero, fmt.Errorf("%s: %w: %w (limit %v)", name, apperrors.ErrTimeout, context.DeadlineExceeded, limit)
	}
}
