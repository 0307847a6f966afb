// Package reconcile turns classified webhook events into budgeting-backend
// transactions.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tverdokhlib/bankbridge/internal/category"
	"github.com/tverdokhlib/bankbridge/internal/common"
	"github.com/tverdokhlib/bankbridge/internal/fetcher"
	"github.com/tverdokhlib/bankbridge/internal/model"
	"github.com/tverdokhlib/bankbridge/internal/payee"
	"github.com/tverdokhlib/bankbridge/internal/service"
)

// TransferMemo is the fixed memo written onto the relabeled leg of a matched
// transfer.
const TransferMemo = "Inter-account transfer"

// Reconciler builds, creates, and links budgeting-backend transactions for
// classified events. It is written once against the BudgetClient interface;
// backend differences live in the client implementations.
type Reconciler struct {
	budget     service.BudgetClient
	categories *category.Engine
	payees     *fetcher.Fetcher[[]model.Payee]
	suggester  *payee.Suggester
	accounts   map[string]model.AccountMapping
	retry      common.RetryOptions

	// transferPayeeIDs caches the backend's per-account transfer payee.
	transferPayeeIDs   map[string]string
	transferPayeeIDsMu sync.Mutex
}

// NewReconciler wires a reconciler over its collaborators. accounts maps bank
// account ids to their budget accounts.
func NewReconciler(
	budget service.BudgetClient,
	categories *category.Engine,
	payees *fetcher.Fetcher[[]model.Payee],
	suggester *payee.Suggester,
	accounts map[string]model.AccountMapping,
	retry common.RetryOptions,
) *Reconciler {
	return &Reconciler{
		budget:           budget,
		categories:       categories,
		payees:           payees,
		suggester:        suggester,
		accounts:         accounts,
		retry:            retry,
		transferPayeeIDs: make(map[string]string),
	}
}

// Reconcile consumes one classification result and issues the backend calls
// it implies: one create for an ordinary transaction, or create-plus-link for
// the second leg of a transfer.
func (r *Reconciler) Reconcile(ctx context.Context, maybe *model.MaybeTransfer) (*model.ReconciliationResult, error) {
	if !maybe.Consume() {
		return nil, errors.New("classification result already consumed")
	}

	mapping, ok := r.accounts[maybe.Event.AccountID]
	if !ok {
		err := fmt.Errorf("%w: %s", common.ErrUnresolvedAccountMapping, maybe.Event.AccountID)
		if maybe.Pending != nil {
			maybe.Pending.Fail(err)
		}
		return nil, err
	}

	if maybe.IsTransfer() {
		return r.reconcileTransfer(ctx, maybe, mapping)
	}
	return r.reconcileSingle(ctx, maybe, mapping)
}

func (r *Reconciler) reconcileSingle(ctx context.Context, maybe *model.MaybeTransfer, mapping model.AccountMapping) (*model.ReconciliationResult, error) {
	result, err := r.createTransaction(ctx, maybe.Event, mapping)
	if err != nil {
		maybe.Pending.Fail(err)
		return nil, err
	}
	maybe.Pending.Complete(result.TransactionID)
	return result, nil
}

func (r *Reconciler) reconcileTransfer(ctx context.Context, maybe *model.MaybeTransfer, mapping model.AccountMapping) (*model.ReconciliationResult, error) {
	result, err := r.createTransaction(ctx, maybe.Event, mapping)
	if err != nil {
		return nil, err
	}
	newID := result.TransactionID

	existingID, err := maybe.Existing.Wait(ctx)
	if err != nil {
		// The counterpart leg was never created; there is nothing to link.
		return nil, fmt.Errorf("counterpart transfer leg unavailable: %w", err)
	}

	transferPayeeID, err := r.transferPayeeID(ctx, mapping.BudgetAccountID)
	if err != nil {
		return nil, &common.PartialTransferLinkError{NewLegID: newID, ExistingLegID: existingID, Err: err}
	}

	// Relabel the counterpart leg as a transfer, then confirm the new leg.
	// The backend has no multi-object transaction; a failure between these
	// calls is surfaced with both ids for manual reconciliation.
	_, err = r.budget.UpdateTransaction(ctx, existingID, service.TransactionFields{
		PayeeID: transferPayeeID,
		Memo:    TransferMemo,
	})
	if err != nil {
		return nil, &common.PartialTransferLinkError{NewLegID: newID, ExistingLegID: existingID, Err: err}
	}

	_, err = r.budget.UpdateTransaction(ctx, newID, service.TransactionFields{
		PayeeID: transferPayeeID,
		Memo:    TransferMemo,
		Cleared: true,
	})
	if err != nil {
		return nil, &common.PartialTransferLinkError{NewLegID: newID, ExistingLegID: existingID, Err: err}
	}

	slog.Info("Linked transfer legs",
		"new_leg", newID,
		"existing_leg", existingID)

	result.Classification = model.ClassificationTransfer
	result.LinkedTransactionID = existingID
	result.PayeeName = ""
	return result, nil
}

// createTransaction builds one backend transaction from a webhook event and
// creates it, suggesting a category from the MCC and a payee from the memo.
// A category or payee list outage degrades to an unset field rather than
// blocking creation.
func (r *Reconciler) createTransaction(ctx context.Context, event model.WebhookEvent, mapping model.AccountMapping) (*model.ReconciliationResult, error) {
	memo := event.Memo()

	categoryID, err := r.categories.IDByMCC(ctx, event.Statement.MCC)
	if err != nil {
		slog.Warn("Category suggestion unavailable, leaving category unset",
			"mcc", event.Statement.MCC,
			"error", err)
		categoryID = ""
	}
	categoryName := ""
	if categoryID != "" {
		categoryName, _ = r.categories.NameByMCC(event.Statement.MCC)
	}

	payeeName := r.suggestPayee(ctx, memo)

	fields := service.TransactionFields{
		Date:       event.Statement.Time,
		AccountID:  mapping.BudgetAccountID,
		PayeeName:  payeeName,
		CategoryID: categoryID,
		Memo:       memo,
		Amount:     event.Statement.Amount,
	}

	var id string
	err = common.WithRetry(ctx, "create-transaction", func() error {
		var createErr error
		id, createErr = r.budget.CreateTransaction(ctx, fields)
		return createErr
	}, r.retry)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	slog.Info("Created transaction",
		"id", id,
		"account", event.AccountID,
		"amount", event.Statement.Amount,
		"category", categoryName,
		"payee", payeeName)

	return &model.ReconciliationResult{
		ProcessedAt:    time.Now(),
		Event:          event,
		TransactionID:  id,
		Classification: model.ClassificationNotTransfer,
		CategoryName:   categoryName,
		PayeeName:      payeeName,
	}, nil
}

func (r *Reconciler) suggestPayee(ctx context.Context, memo string) string {
	known, err := r.payees.GetData(ctx)
	if err != nil {
		slog.Warn("Payee list unavailable, leaving payee unset", "error", err)
		return ""
	}

	names := make([]string, len(known))
	for i, p := range known {
		names[i] = p.Name
	}
	ranked := r.suggester.Suggest(memo, names)
	if len(ranked) == 0 {
		return ""
	}
	return ranked[0]
}

func (r *Reconciler) transferPayeeID(ctx context.Context, budgetAccountID string) (string, error) {
	r.transferPayeeIDsMu.Lock()
	defer r.transferPayeeIDsMu.Unlock()

	if id, ok := r.transferPayeeIDs[budgetAccountID]; ok {
		return id, nil
	}
	id, err := r.budget.TransferPayeeID(ctx, budgetAccountID)
	if err != nil {
		return "", err
	}
	r.transferPayeeIDs[budgetAccountID] = id
	return id, nil
}
