// Package model defines the core financial types shared across the application.
package model

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Amount is a signed monetary value in minor currency units (cents, kopiykas).
// Negative values are debits, positive values are credits.
type Amount int64

// Abs returns the magnitude of the amount.
func (a Amount) Abs() Amount {
	if a < 0 {
		return -a
	}
	return a
}

// EqualsInverted reports whether other is the exact arithmetic inverse of a.
// Two legs of an intra-user transfer always satisfy this.
func (a Amount) EqualsInverted(other Amount) bool {
	return int64(a) == -int64(other)
}

// Milliunits converts minor units to YNAB milliunits (1/1000th of a major unit).
func (a Amount) Milliunits() int64 {
	return int64(a) * 10
}

// Decimal converts minor units to a major-unit decimal with the currency's
// fraction digits (e.g. 12345 -> 123.45 for a two-digit currency).
func (a Amount) Decimal(fractionDigits int) decimal.Decimal {
	return decimal.New(int64(a), -int32(fractionDigits))
}

// Format renders the amount as a human-readable major-unit string.
func (a Amount) Format(fractionDigits int) string {
	return a.Decimal(fractionDigits).StringFixed(int32(fractionDigits))
}

// StatementItem is one bank ledger entry as delivered by the banking provider.
// It is immutable; the provider may deliver the same entry more than once.
type StatementItem struct {
	Time            time.Time `json:"time"`
	ID              string    `json:"id"`
	Description     string    `json:"description"`
	CurrencyCode    string    `json:"currencyCode"`
	MCC             int       `json:"mcc"`
	Amount          Amount    `json:"amount"`
	OperationAmount Amount    `json:"operationAmount"`
}

// UnmarshalJSON accepts the statement time either as the provider's native
// Unix epoch seconds or as an RFC 3339 string.
func (s *StatementItem) UnmarshalJSON(data []byte) error {
	type alias StatementItem
	aux := struct {
		Time json.RawMessage `json:"time"`
		*alias
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Time) == 0 || string(aux.Time) == "null" {
		return nil
	}

	if aux.Time[0] == '"' {
		return json.Unmarshal(aux.Time, &s.Time)
	}
	var epoch int64
	if err := json.Unmarshal(aux.Time, &epoch); err != nil {
		return fmt.Errorf("invalid statement time: %w", err)
	}
	s.Time = time.Unix(epoch, 0).UTC()
	return nil
}

// WebhookEvent wraps a StatementItem with the owning bank account id.
// One WebhookEvent corresponds to one HTTP delivery; the same underlying
// ledger entry may arrive as multiple events.
type WebhookEvent struct {
	AccountID string        `json:"account"`
	Statement StatementItem `json:"statementItem"`
}

// Fingerprint derives a stable digest of the full delivered payload, used as
// the duplicate-detection cache key. Structurally identical deliveries map to
// the same fingerprint.
func (e WebhookEvent) Fingerprint() string {
	data := fmt.Sprintf("%s:%d:%s:%s:%d:%d",
		e.AccountID,
		e.Statement.Amount,
		e.Statement.CurrencyCode,
		e.Statement.Description,
		e.Statement.MCC,
		e.Statement.Time.UnixNano(),
	)
	sum := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", sum)
}

// Memo returns the statement description with newlines collapsed, suitable
// for a single-line budgeting-backend memo field.
func (e WebhookEvent) Memo() string {
	return strings.Join(strings.Fields(e.Statement.Description), " ")
}
