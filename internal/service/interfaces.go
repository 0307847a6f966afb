// Package service defines the interfaces for all application collaborators.
package service

import (
	"context"
	"time"

	"github.com/tverdokhlib/bankbridge/internal/model"
)

// TransactionFields carries everything needed to create or update one
// budgeting-backend transaction. Zero-value fields are left unset on update.
type TransactionFields struct {
	Date       time.Time
	AccountID  string
	PayeeID    string
	PayeeName  string
	CategoryID string
	Memo       string
	Amount     model.Amount
	Cleared    bool
}

// TransactionRecord is one transaction as the budgeting backend reports it.
type TransactionRecord struct {
	Date       time.Time
	ID         string
	AccountID  string
	PayeeID    string
	PayeeName  string
	CategoryID string
	Memo       string
	Amount     model.Amount
	Cleared    bool
}

// BudgetClient is the capability set every budgeting backend must provide.
// The reconciler is written once against this interface; there is one
// implementation per backend.
type BudgetClient interface {
	CreateTransaction(ctx context.Context, fields TransactionFields) (string, error)
	UpdateTransaction(ctx context.Context, id string, fields TransactionFields) (*TransactionRecord, error)
	GetTransaction(ctx context.Context, id string) (*TransactionRecord, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	ListPayees(ctx context.Context) ([]model.Payee, error)
	// TransferPayeeID resolves the backend's transfer-payee sentinel for the
	// given budget account.
	TransferPayeeID(ctx context.Context, budgetAccountID string) (string, error)
}

// MessageRef identifies an already-sent notification for later edits.
type MessageRef struct {
	ChatID    int64
	MessageID int64
}

// MessageSender delivers notifications to the messaging channel. Both calls
// are fire-and-forget from the reconciler's perspective: implementations log
// failures instead of surfacing them. SendNotification returns a reference to
// the delivered message for later edits, or nil when delivery failed.
type MessageSender interface {
	SendNotification(ctx context.Context, chatID int64, result *model.ReconciliationResult) *MessageRef
	SendFailure(ctx context.Context, chatID int64)
}

// JournalEntry is one recorded reconciliation outcome.
type JournalEntry struct {
	ProcessedAt         time.Time
	ID                  string
	Fingerprint         string
	BankAccountID       string
	TransactionID       string
	LinkedTransactionID string
	Classification      string
	Memo                string
	Amount              model.Amount
}

// Journal is the append-only record of processed events.
type Journal interface {
	Record(ctx context.Context, entry JournalEntry) error
	Recent(ctx context.Context, limit int) ([]JournalEntry, error)
	Migrate(ctx context.Context) error
	Close() error
}
