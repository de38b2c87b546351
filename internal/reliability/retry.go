package reliability

import (
	"context"
	"errors"
	"time"

	"github.com/antoniostano/bootcamp/internal/failure"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// RetryPolicy retries an operation with doubling delays while the returned
// error satisfies Retryable.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Retryable   func(error) bool

	// Sleep waits between attempts. Nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called before each wait with the attempt that just failed
	// (1-based) and the delay about to be applied.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetryPolicy retries rate-limit and server errors three times in
// total, waiting 1s then 2s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Retryable:   failure.Retryable,
	}
}

// NoRetry runs the operation exactly once.
func NoRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

// Delay returns the wait applied after the given failed attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return ExponentialBackoff(attempt-1, p.BaseDelay, p.MaxDelay)
}

// Do runs fn until it succeeds, returns a non-retryable error, or the attempt
// cap is reached. The last error is returned unchanged.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = failure.Retryable
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == maxAttempts || !retryable(err) {
			return err
		}
		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if serr := sleep(ctx, delay); serr != nil {
			return errors.Join(err, serr)
		}
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
