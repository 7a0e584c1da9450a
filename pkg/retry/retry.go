// Package retry runs external calls under a bounded exponential backoff
// policy where every attempt carries its own timeout.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Operation is a single attempt. The context is bounded by the attempt timeout.
type Operation func(ctx context.Context) error

// Notify is called before each retry with the attempt number that just
// failed, its error, and the wait before the next attempt.
type Notify func(attempt int, err error, wait time.Duration)

// Permanent marks err as not retryable. Do returns the unwrapped error.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a Permanent error, or MaxAttempts
// is exhausted. It returns the number of attempts made alongside the last error.
// Once ctx is done no further attempt starts.
func Do(ctx context.Context, cfg *Config, op Operation, notify Notify) (int, error) {
	attempts := 0
	timeout := cfg.TimeoutDuration()

	operation := func() error {
		attempts++

		actx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		err := op(actx)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	var onRetry backoff.Notify
	if notify != nil {
		onRetry = func(err error, wait time.Duration) {
			notify(attempts, err, wait)
		}
	}

	err := backoff.RetryNotify(operation, newBackOff(ctx, cfg), onRetry)
	return attempts, err
}

func newBackOff(ctx context.Context, cfg *Config) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialIntervalDuration()
	b.MaxInterval = cfg.MaxIntervalDuration()
	b.Multiplier = cfg.Multiplier
	b.MaxElapsedTime = 0
	b.Reset()

	return backoff.WithContext(
		backoff.WithMaxRetries(b, uint64(cfg.MaxAttempts-1)),
		ctx,
	)
}
