package dedup

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tverdokhlib/bankbridge/internal/cache"
	"github.com/tverdokhlib/bankbridge/internal/model"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func testEvent(account string, amount model.Amount, memo string) model.WebhookEvent {
	return model.WebhookEvent{
		AccountID: account,
		Statement: model.StatementItem{
			ID:           "stmt-1",
			Time:         time.Date(2024, 3, 1, 11, 59, 30, 0, time.UTC),
			Amount:       amount,
			CurrencyCode: "UAH",
			MCC:          5411,
			Description:  memo,
		},
	}
}

func TestFilter_FirstThenDuplicate(t *testing.T) {
	clock := newFakeClock()
	f := NewFilter(5*time.Minute, cache.WithClock(clock.Now))
	defer f.Close()

	event := testEvent("acc-1", -12500, "SILPO")

	assert.False(t, f.CheckIsDuplicate(event), "first delivery is not a duplicate")
	assert.True(t, f.CheckIsDuplicate(event), "replay within the TTL is a duplicate")
}

func TestFilter_ResetsAfterTTL(t *testing.T) {
	clock := newFakeClock()
	f := NewFilter(5*time.Minute, cache.WithClock(clock.Now))
	defer f.Close()

	event := testEvent("acc-1", -12500, "SILPO")

	assert.False(t, f.CheckIsDuplicate(event))
	clock.Advance(6 * time.Minute)
	assert.False(t, f.CheckIsDuplicate(event), "sequence resets once the fingerprint expires")
	assert.True(t, f.CheckIsDuplicate(event))
}

func TestFilter_DistinguishesPayloads(t *testing.T) {
	clock := newFakeClock()
	f := NewFilter(5*time.Minute, cache.WithClock(clock.Now))
	defer f.Close()

	assert.False(t, f.CheckIsDuplicate(testEvent("acc-1", -12500, "SILPO")))
	assert.False(t, f.CheckIsDuplicate(testEvent("acc-2", -12500, "SILPO")), "different account is a different payload")
	assert.False(t, f.CheckIsDuplicate(testEvent("acc-1", -12600, "SILPO")), "different amount is a different payload")
	assert.False(t, f.CheckIsDuplicate(testEvent("acc-1", -12500, "ATB")), "different memo is a different payload")
}

func TestFilter_ConcurrentDeliveriesAdmitExactlyOne(t *testing.T) {
	f := NewFilter(5 * time.Minute)
	defer f.Close()

	event := testEvent("acc-1", -999, "concurrent")

	var admitted int64
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !f.CheckIsDuplicate(event) {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), admitted)
}
