// Package cache provides a generic TTL-bounded key-value store.
package cache

import (
	"container/heap"
	"sync"
	"time"
)

type entry[V any] struct {
	deadline time.Time
	value    V
}

type deadlineItem[K comparable] struct {
	deadline time.Time
	key      K
}

// deadlineHeap is a min-heap of entry deadlines. A single background
// goroutine drains it instead of one timer per entry.
type deadlineHeap[K comparable] []deadlineItem[K]

func (h deadlineHeap[K]) Len() int            { return len(h) }
func (h deadlineHeap[K]) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h deadlineHeap[K]) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *deadlineHeap[K]) Push(x any)         { *h = append(*h, x.(deadlineItem[K])) }
func (h *deadlineHeap[K]) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Option configures an ExpiringCache.
type Option func(*options)

type options struct {
	clock func() time.Time
}

// WithClock overrides the time source, for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// ExpiringCache stores values with a fixed time-to-live measured from
// insertion. Expired entries are removed by a background sweeper and,
// independently, ignored on read, so a lookup never observes a half-removed
// entry.
type ExpiringCache[K comparable, V any] struct {
	clock   func() time.Time
	entries map[K]entry[V]
	wake    chan struct{}
	done    chan struct{}
	heap    deadlineHeap[K]
	ttl     time.Duration
	mu      sync.Mutex
	closed  bool
}

// New creates a cache whose entries live for ttl after insertion.
func New[K comparable, V any](ttl time.Duration, opts ...Option) *ExpiringCache[K, V] {
	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	c := &ExpiringCache[K, V]{
		ttl:     ttl,
		clock:   o.clock,
		entries: make(map[K]entry[V]),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go c.sweep()
	return c
}

// Put stores a value and schedules its removal after the cache TTL.
// Re-putting an existing key resets its deadline.
func (c *ExpiringCache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.insertLocked(key, value)
}

// Get returns the value for key if present and not yet expired.
func (c *ExpiringCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !c.clock().Before(e.deadline) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Delete removes key immediately, ahead of its deadline.
func (c *ExpiringCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// ContainsOrInsert atomically checks for key. If absent it inserts value and
// returns false (not previously present); if present and live it returns true
// without modifying the entry.
func (c *ExpiringCache[K, V]) ContainsOrInsert(key K, value V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok && c.clock().Before(e.deadline) {
		return true
	}
	c.insertLocked(key, value)
	return false
}

// Len reports the number of live entries.
func (c *ExpiringCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	n := 0
	for _, e := range c.entries {
		if now.Before(e.deadline) {
			n++
		}
	}
	return n
}

// Close stops the background sweeper. The cache remains usable for lazy-expiry
// reads afterwards.
func (c *ExpiringCache[K, V]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}

func (c *ExpiringCache[K, V]) insertLocked(key K, value V) {
	deadline := c.clock().Add(c.ttl)
	c.entries[key] = entry[V]{value: value, deadline: deadline}
	heap.Push(&c.heap, deadlineItem[K]{key: key, deadline: deadline})

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *ExpiringCache[K, V]) sweep() {
	timer := time.NewTimer(c.ttl)
	defer timer.Stop()

	for {
		c.mu.Lock()
		wait := c.evictDueLocked()
		c.mu.Unlock()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-c.done:
			return
		case <-c.wake:
		case <-timer.C:
		}
	}
}

// evictDueLocked pops every deadline that has passed and returns how long the
// sweeper should sleep until the next one. Heap items whose key was
// re-inserted with a later deadline are stale and skipped.
func (c *ExpiringCache[K, V]) evictDueLocked() time.Duration {
	now := c.clock()
	for c.heap.Len() > 0 {
		next := c.heap[0]
		if now.Before(next.deadline) {
			return next.deadline.Sub(now)
		}
		heap.Pop(&c.heap)

		if e, ok := c.entries[next.key]; ok && !now.Before(e.deadline) {
			delete(c.entries, next.key)
		}
	}
	return c.ttl
}
