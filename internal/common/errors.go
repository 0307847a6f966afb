// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Pipeline outcomes.
	ErrDuplicateEvent = errors.New("duplicate webhook event")

	// Configuration errors.
	ErrUnresolvedAccountMapping = errors.New("no account mapping for bank account")
	ErrMissingConfig            = errors.New("missing configuration")
	ErrInvalidConfig            = errors.New("invalid configuration")

	// Backend errors.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrBackendRejected     = errors.New("backend rejected request")
	ErrRateLimit           = errors.New("rate limit exceeded")
)

// PartialTransferLinkError reports a transfer whose new leg was created but
// whose existing leg could not be relinked. The backend offers no multi-object
// transaction, so this is the one state the reconciler cannot self-heal; both
// ids are carried so an operator can reconcile manually.
type PartialTransferLinkError struct {
	Err           error
	NewLegID      string
	ExistingLegID string
}

func (e *PartialTransferLinkError) Error() string {
	return fmt.Sprintf("transfer link incomplete: new leg %s created, existing leg %s not relinked: %v",
		e.NewLegID, e.ExistingLegID, e.Err)
}

func (e *PartialTransferLinkError) Unwrap() error {
	return e.Err
}

// RetryableError wraps an error with retry-specific metadata.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
