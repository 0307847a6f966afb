package common

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryOptions configures retry behavior for outbound backend calls.
type RetryOptions struct {
	MaxAttempts  uint64
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// WithRetry executes an operation with exponential backoff. Errors that
// IsRetryable rejects are returned immediately without further attempts.
func WithRetry(ctx context.Context, name string, operation func() error, opts RetryOptions) error {
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 3
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = 100 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}
	if opts.Multiplier <= 0 {
		opts.Multiplier = backoff.DefaultMultiplier
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = opts.InitialDelay
	eb.MaxInterval = opts.MaxDelay
	eb.Multiplier = opts.Multiplier

	attempt := 0
	wrapped := func() error {
		attempt++
		err := operation()
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		slog.Warn("Operation failed, retrying",
			"operation", name,
			"attempt", attempt,
			"max_attempts", opts.MaxAttempts,
			"error", err)
		return err
	}

	err := backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(eb, opts.MaxAttempts-1), ctx))
	if err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return permanent.Err
		}
		return err
	}
	return nil
}
