// Package retry holds the bounded retry-with-backoff policy shared by embedding,
// vector store and quiz generation calls.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type Func func(ctx context.Context, attempt int) error

type Policy struct {
	Name        string
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

type stopError struct {
	err error
}

func (e stopError) Error() string {
	return e.err.Error()
}

func (e stopError) Unwrap() error {
	return e.err
}

// Stop marks err as non-retryable. Do returns the wrapped error immediately.
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return stopError{err: err}
}

// Do runs fn until it succeeds, returns a Stop error, the context is done or
// MaxAttempts is reached. Attempts are numbered from 1. The last error is returned.
func (p Policy) Do(ctx context.Context, fn Func) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		var stop stopError
		if errors.As(err, &stop) {
			return stop.err
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		delay := p.Delay(attempt)
		logutil.GetLogger(ctx).Debug("retrying",
			zap.String("op", p.Name),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
	return lastErr
}

// Delay is the wait after the given failed attempt: BaseDelay doubled per
// attempt, capped by MaxDelay when set.
func (p Policy) Delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 || attempt <= 0 {
		return 0
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Do runs fn under a policy built from the arguments.
func Do(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn Func) error {
	return Policy{MaxAttempts: maxAttempts, BaseDelay: baseDelay}.Do(ctx, fn)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
