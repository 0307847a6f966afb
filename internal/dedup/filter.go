// Package dedup suppresses re-delivered webhook events.
package dedup

import (
	"log/slog"
	"time"

	"github.com/tverdokhlib/bankbridge/internal/cache"
	"github.com/tverdokhlib/bankbridge/internal/model"
)

// Filter is the system's idempotency boundary: every event it admits is
// processed exactly once downstream. The TTL must span the banking provider's
// retry window.
type Filter struct {
	seen *cache.ExpiringCache[string, struct{}]
}

// NewFilter creates a filter remembering fingerprints for ttl.
func NewFilter(ttl time.Duration, opts ...cache.Option) *Filter {
	return &Filter{
		seen: cache.New[string, struct{}](ttl, opts...),
	}
}

// CheckIsDuplicate reports whether a structurally identical payload was
// already delivered within the TTL window. The first observation records the
// fingerprint and returns false.
func (f *Filter) CheckIsDuplicate(event model.WebhookEvent) bool {
	fingerprint := event.Fingerprint()
	if f.seen.ContainsOrInsert(fingerprint, struct{}{}) {
		slog.Info("Dropping duplicate webhook delivery",
			"fingerprint", fingerprint,
			"account", event.AccountID)
		return true
	}

	slog.Info("Incoming statement",
		"account", event.AccountID,
		"amount", event.Statement.Amount,
		"currency", event.Statement.CurrencyCode,
		"memo", event.Memo())
	return false
}

// Close releases the underlying cache sweeper.
func (f *Filter) Close() {
	f.seen.Close()
}
