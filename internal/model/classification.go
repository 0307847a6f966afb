package model

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// TransferClassification labels the outcome of transfer correlation for one
// webhook event.
type TransferClassification string

const (
	// ClassificationTransfer means the event was matched with a previously
	// seen counterpart leg from another account.
	ClassificationTransfer TransferClassification = "transfer"
	// ClassificationNotTransfer means no counterpart leg was found.
	ClassificationNotTransfer TransferClassification = "not_transfer"
)

// TransactionPromise is the eventually available id of a backend transaction
// that is still being created. The first leg of a transfer is classified
// before its backend call completes, so the matching second leg awaits the id
// through a promise rather than reading it directly.
type TransactionPromise struct {
	done chan struct{}
	err  error
	id   string
	once sync.Once
}

// NewTransactionPromise creates an unresolved promise.
func NewTransactionPromise() *TransactionPromise {
	return &TransactionPromise{done: make(chan struct{})}
}

// Complete resolves the promise with a created transaction id. Only the first
// Complete or Fail takes effect.
func (p *TransactionPromise) Complete(id string) {
	p.once.Do(func() {
		p.id = id
		close(p.done)
	})
}

// Fail resolves the promise with the error that prevented creation.
func (p *TransactionPromise) Fail(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

// Wait blocks until the promise resolves or ctx is done.
func (p *TransactionPromise) Wait(ctx context.Context) (string, error) {
	select {
	case <-p.done:
		return p.id, p.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// MaybeTransfer is the tagged result of transfer correlation. It is consumed
// exactly once by the reconciler; Consume guards against double processing.
type MaybeTransfer struct {
	// Existing is the counterpart leg's transaction promise. Set only for
	// the Transfer variant.
	Existing *TransactionPromise
	// Pending is this event's own transaction promise, registered as a
	// transfer candidate. The reconciler resolves it once the backend call
	// finishes. Set only for the NotTransfer variant.
	Pending *TransactionPromise
	// Event is the newly delivered webhook event.
	Event WebhookEvent
	// Classification tags which variant this is.
	Classification TransferClassification

	consumed atomic.Bool
}

// NewTransfer builds the Transfer variant pairing a new event with the
// promise of its counterpart leg's backend transaction.
func NewTransfer(event WebhookEvent, existing *TransactionPromise) *MaybeTransfer {
	return &MaybeTransfer{
		Event:          event,
		Existing:       existing,
		Classification: ClassificationTransfer,
	}
}

// NewNotTransfer builds the NotTransfer variant.
func NewNotTransfer(event WebhookEvent, pending *TransactionPromise) *MaybeTransfer {
	return &MaybeTransfer{
		Event:          event,
		Pending:        pending,
		Classification: ClassificationNotTransfer,
	}
}

// IsTransfer reports whether this is the Transfer variant.
func (m *MaybeTransfer) IsTransfer() bool {
	return m.Classification == ClassificationTransfer
}

// Consume marks the result as processed. The first call returns true; every
// later call returns false.
func (m *MaybeTransfer) Consume() bool {
	return m.consumed.CompareAndSwap(false, true)
}

// ReconciliationResult is produced once per admitted event and handed to the
// notification layer.
type ReconciliationResult struct {
	ProcessedAt         time.Time
	Event               WebhookEvent
	TransactionID       string
	LinkedTransactionID string
	Classification      TransferClassification
	CategoryName        string
	PayeeName           string
}
