// Package fetcher provides a periodically refreshed snapshot of a
// backend-provided list, serving stale-but-available data during outages.
package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/tverdokhlib/bankbridge/internal/common"
)

// FetchFunc pulls a fresh snapshot from the backend.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Fetcher caches the most recent snapshot returned by a FetchFunc and
// refreshes it in the background on a fixed interval. GetData never blocks on
// a value that is already present.
type Fetcher[T any] struct {
	fetch    FetchFunc[T]
	cron     *cron.Cron
	name     string
	group    singleflight.Group
	mu       sync.RWMutex
	snapshot T
	loaded   bool
}

// New creates a fetcher and starts its background refresh schedule.
func New[T any](name string, interval time.Duration, fetch FetchFunc[T]) (*Fetcher[T], error) {
	f := &Fetcher[T]{
		name:  name,
		fetch: fetch,
		cron:  cron.New(),
	}

	if _, err := f.cron.AddFunc(fmt.Sprintf("@every %s", interval), f.refresh); err != nil {
		return nil, fmt.Errorf("failed to schedule %s refresh: %w", name, err)
	}
	f.cron.Start()

	return f, nil
}

// GetData returns the most recently fetched snapshot. If no snapshot exists
// yet it fetches synchronously; concurrent first callers share one fetch.
// With no snapshot and a failing backend it returns ErrUpstreamUnavailable.
func (f *Fetcher[T]) GetData(ctx context.Context) (T, error) {
	f.mu.RLock()
	if f.loaded {
		snapshot := f.snapshot
		f.mu.RUnlock()
		return snapshot, nil
	}
	f.mu.RUnlock()

	_, err, _ := f.group.Do(f.name, func() (any, error) {
		snapshot, fetchErr := f.fetch(ctx)
		if fetchErr != nil {
			return nil, fetchErr
		}
		f.store(snapshot)
		return nil, nil
	})
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%w: initial %s fetch failed: %v", common.ErrUpstreamUnavailable, f.name, err)
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.snapshot, nil
}

// Close stops the background refresh schedule.
func (f *Fetcher[T]) Close() {
	f.cron.Stop()
}

func (f *Fetcher[T]) refresh() {
	snapshot, err := f.fetch(context.Background())
	if err != nil {
		// Keep serving the last good snapshot.
		slog.Warn("Periodic refresh failed, retaining previous data",
			"fetcher", f.name,
			"error", err)
		return
	}
	f.store(snapshot)
	slog.Debug("Periodic refresh completed", "fetcher", f.name)
}

func (f *Fetcher[T]) store(snapshot T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshot = snapshot
	f.loaded = true
}
