// Package retry re-runs fallible operations with a fixed delay between attempts.
package retry

import (
	"context"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultDelay       = time.Second
)

// Policy configures Do. The zero value makes a single attempt.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration

	// OnRetry is called after a failed attempt that will be retried.
	OnRetry func(attempt int, err error)
	// Wait blocks for the delay between attempts, Sleep when nil.
	Wait func(ctx context.Context, d time.Duration) error
}

func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, Delay: DefaultDelay}
}

// Do runs op up to p.MaxAttempts times and returns the first success. After the
// last failed attempt the last error is returned unchanged. Every error is
// retried the same way regardless of its kind.
//
// If ctx is done before an attempt or while waiting, ctx.Err() is returned.
// A wait that would outlast the ctx deadline is skipped and the last error is
// returned right away.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	attempts := max(p.MaxAttempts, 1)
	delay := max(p.Delay, 0)
	wait := p.Wait
	if wait == nil {
		wait = Sleep
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == attempts {
			break
		}
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
			return zero, lastErr
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if err := wait(ctx, delay); err != nil {
			return zero, err
		}
	}

	return zero, lastErr
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
