// Package webhook receives bank webhook deliveries and drives them through
// the reconciliation pipeline.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tverdokhlib/bankbridge/internal/common"
	"github.com/tverdokhlib/bankbridge/internal/model"
	"github.com/tverdokhlib/bankbridge/internal/service"
)

// DefaultProcessTimeout bounds how long a single delivery may spend in the
// pipeline after it has been acknowledged.
const DefaultProcessTimeout = 2 * time.Minute

// deduplicator admits each distinct delivery exactly once.
type deduplicator interface {
	CheckIsDuplicate(event model.WebhookEvent) bool
}

// classifier decides whether an event is one leg of a cross-account transfer.
type classifier interface {
	Classify(event model.WebhookEvent) *model.MaybeTransfer
}

// reconciler issues the backend calls a classified event implies.
type reconciler interface {
	Reconcile(ctx context.Context, maybe *model.MaybeTransfer) (*model.ReconciliationResult, error)
}

// Processor runs the dedup -> classify -> reconcile -> record -> notify
// pipeline for acknowledged deliveries.
type Processor struct {
	dedup      deduplicator
	correlator classifier
	reconciler reconciler
	journal    service.Journal
	sender     service.MessageSender
	accounts   map[string]model.AccountMapping
	timeout    time.Duration
	inflight   sync.WaitGroup
}

// NewProcessor wires the pipeline. journal and sender may be nil; the
// corresponding steps are skipped.
func NewProcessor(
	dedup deduplicator,
	correlator classifier,
	rec reconciler,
	journal service.Journal,
	sender service.MessageSender,
	accounts map[string]model.AccountMapping,
	timeout time.Duration,
) *Processor {
	if timeout <= 0 {
		timeout = DefaultProcessTimeout
	}
	return &Processor{
		dedup:      dedup,
		correlator: correlator,
		reconciler: rec,
		journal:    journal,
		sender:     sender,
		accounts:   accounts,
		timeout:    timeout,
	}
}

// Enqueue acknowledges the event and processes it on its own goroutine. The
// HTTP handler must not block on backend calls.
func (p *Processor) Enqueue(event model.WebhookEvent) {
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()

		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		if err := p.Process(ctx, event); err != nil && !errors.Is(err, common.ErrDuplicateEvent) {
			common.LogError(err, "Webhook delivery failed", common.Fields{
				"account": event.AccountID,
			})
		}
	}()
}

// Wait blocks until all enqueued deliveries have finished. Used on shutdown.
func (p *Processor) Wait() {
	p.inflight.Wait()
}

// Process runs one delivery through the pipeline synchronously. A repeated
// delivery returns ErrDuplicateEvent; callers treat that as a normal drop,
// not a failure.
func (p *Processor) Process(ctx context.Context, event model.WebhookEvent) error {
	if p.dedup.CheckIsDuplicate(event) {
		common.LogDebug("Dropping duplicate webhook delivery", common.Fields{
			"account":     event.AccountID,
			"fingerprint": event.Fingerprint(),
		})
		return fmt.Errorf("%w: %s", common.ErrDuplicateEvent, event.Fingerprint())
	}

	maybe := p.correlator.Classify(event)

	result, err := p.reconciler.Reconcile(ctx, maybe)
	if err != nil {
		p.notifyFailure(ctx, event)
		return fmt.Errorf("failed to reconcile %s event: %w", maybe.Classification, err)
	}

	p.record(ctx, result)

	if p.sender != nil {
		if mapping, ok := p.accounts[event.AccountID]; ok {
			if ref := p.sender.SendNotification(ctx, mapping.ChatID, result); ref != nil {
				slog.Debug("Notification delivered",
					"chat_id", ref.ChatID,
					"message_id", ref.MessageID)
			}
		}
	}
	return nil
}

func (p *Processor) record(ctx context.Context, result *model.ReconciliationResult) {
	if p.journal == nil {
		return
	}

	err := p.journal.Record(ctx, service.JournalEntry{
		ProcessedAt:         result.ProcessedAt,
		Fingerprint:         result.Event.Fingerprint(),
		BankAccountID:       result.Event.AccountID,
		TransactionID:       result.TransactionID,
		LinkedTransactionID: result.LinkedTransactionID,
		Classification:      string(result.Classification),
		Memo:                result.Event.Memo(),
		Amount:              result.Event.Statement.Amount,
	})
	if err != nil {
		// Journaling is best effort; the backend transaction already exists.
		common.LogError(err, "Failed to journal reconciliation result", common.Fields{
			"transaction_id": result.TransactionID,
		})
	}
}

func (p *Processor) notifyFailure(ctx context.Context, event model.WebhookEvent) {
	if p.sender == nil {
		return
	}
	mapping, ok := p.accounts[event.AccountID]
	if !ok {
		return
	}
	p.sender.SendFailure(ctx, mapping.ChatID)
}
