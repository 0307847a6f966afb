// Package transfer pairs the two webhook deliveries composing an
// intra-user account transfer.
package transfer

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/tverdokhlib/bankbridge/internal/cache"
	"github.com/tverdokhlib/bankbridge/internal/model"
)

const stripeCount = 64

// candidate is one webhook event held pending while the correlator waits for
// its counterpart leg.
type candidate struct {
	promise *model.TransactionPromise
	event   model.WebhookEvent
}

// Correlator classifies each admitted event as one leg of a transfer or as an
// ordinary transaction. A transfer appears as two independent, unordered
// deliveries with inverted signed amounts from different accounts; the first
// leg is held pending under a bounded TTL and the second, matching leg
// produces the Transfer classification.
type Correlator struct {
	pending *cache.ExpiringCache[string, candidate]
	ttl     time.Duration
	stripes [stripeCount]sync.Mutex
}

// NewCorrelator creates a correlator whose pending candidates live for ttl.
func NewCorrelator(ttl time.Duration, opts ...cache.Option) *Correlator {
	return &Correlator{
		pending: cache.New[string, candidate](ttl, opts...),
		ttl:     ttl,
	}
}

// Classify runs the check-and-insert-or-match step for one admitted event.
// The critical section is per match key (lock striping), so deliveries for
// unrelated keys proceed in parallel while two concurrent legs of the same
// transfer can never both observe "no existing candidate".
func (c *Correlator) Classify(event model.WebhookEvent) *model.MaybeTransfer {
	pairKey := c.pairKey(event)
	stripe := &c.stripes[stripeIndex(pairKey)]
	stripe.Lock()
	defer stripe.Unlock()

	// The counterpart may sit in the current bucket or, when the pair
	// straddles a bucket boundary, in the previous one.
	bucket := event.Statement.Time.Truncate(c.ttl)
	currentKey := bucketKey(pairKey, bucket)
	previousKey := bucketKey(pairKey, bucket.Add(-c.ttl))

	currentOccupied := false
	for _, key := range []string{currentKey, previousKey} {
		cand, ok := c.pending.Get(key)
		if !ok {
			continue
		}
		if cand.event.AccountID != event.AccountID &&
			cand.event.Statement.Amount.EqualsInverted(event.Statement.Amount) {
			c.pending.Delete(key)
			slog.Info("Matched transfer legs",
				"account", event.AccountID,
				"counterpart_account", cand.event.AccountID,
				"amount", event.Statement.Amount)
			return model.NewTransfer(event, cand.promise)
		}
		// Coincidental collision: same key but same account or amounts
		// that are not exact inverses. The original candidate stays in
		// place for a later, correct counterpart.
		slog.Debug("Pending candidate collision, not a transfer pair",
			"account", event.AccountID,
			"candidate_account", cand.event.AccountID)
		if key == currentKey {
			currentOccupied = true
		}
	}

	promise := model.NewTransactionPromise()
	if !currentOccupied {
		c.pending.Put(currentKey, candidate{event: event, promise: promise})
	}
	return model.NewNotTransfer(event, promise)
}

// PendingCount reports how many unmatched candidates are currently held.
func (c *Correlator) PendingCount() int {
	return c.pending.Len()
}

// Close releases the pending-candidate cache sweeper.
func (c *Correlator) Close() {
	c.pending.Close()
}

func (c *Correlator) pairKey(event model.WebhookEvent) string {
	return fmt.Sprintf("%d|%s", event.Statement.Amount.Abs(), event.Statement.CurrencyCode)
}

func bucketKey(pairKey string, bucket time.Time) string {
	return fmt.Sprintf("%s|%d", pairKey, bucket.Unix())
}

func stripeIndex(pairKey string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(pairKey))
	return int(h.Sum32() % stripeCount)
}
