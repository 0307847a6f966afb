package common

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts uint64) RetryOptions {
	return RetryOptions{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   1.5,
	}
}

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), "test-op", func() error {
		attempts++
		if attempts < 3 {
			return &RetryableError{Err: errors.New("transient"), Retryable: true}
		}
		return nil
	}, fastRetry(5))

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("bad request")
	attempts := 0
	err := WithRetry(context.Background(), "test-op", func() error {
		attempts++
		return permanent
	}, fastRetry(5))

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, attempts)
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), "test-op", func() error {
		attempts++
		return &RetryableError{Err: errors.New("still down"), Retryable: true}
	}, fastRetry(3))

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := WithRetry(ctx, "test-op", func() error {
		attempts++
		return &RetryableError{Err: errors.New("transient"), Retryable: true}
	}, fastRetry(10))

	require.Error(t, err)
	assert.LessOrEqual(t, attempts, 2)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "rate limit", err: ErrRateLimit, want: true},
		{name: "wrapped rate limit", err: fmt.Errorf("call failed: %w", ErrRateLimit), want: true},
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: true},
		{name: "retryable wrapper", err: &RetryableError{Err: errors.New("x"), Retryable: true}, want: true},
		{name: "non-retryable wrapper", err: &RetryableError{Err: errors.New("x"), Retryable: false}, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
		{name: "backend rejected", err: ErrBackendRejected, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestPartialTransferLinkError(t *testing.T) {
	cause := errors.New("update rejected")
	err := &PartialTransferLinkError{Err: cause, NewLegID: "txn-new", ExistingLegID: "txn-old"}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "txn-new")
	assert.Contains(t, err.Error(), "txn-old")
}
