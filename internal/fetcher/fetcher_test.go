package fetcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tverdokhlib/bankbridge/internal/common"
)

func TestFetcher_SynchronousFirstFetch(t *testing.T) {
	f, err := New("categories", time.Hour, func(_ context.Context) ([]string, error) {
		return []string{"Groceries", "Transport"}, nil
	})
	require.NoError(t, err)
	defer f.Close()

	data, err := f.GetData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Groceries", "Transport"}, data)
}

func TestFetcher_UpstreamUnavailableWithoutSnapshot(t *testing.T) {
	f, err := New("payees", time.Hour, func(_ context.Context) ([]string, error) {
		return nil, errors.New("connection refused")
	})
	require.NoError(t, err)
	defer f.Close()

	_, err = f.GetData(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrUpstreamUnavailable)
}

func TestFetcher_ServesStaleSnapshotAfterFailure(t *testing.T) {
	var calls atomic.Int32
	f, err := New("categories", 20*time.Millisecond, func(_ context.Context) ([]string, error) {
		if calls.Add(1) == 1 {
			return []string{"first"}, nil
		}
		return nil, errors.New("backend down")
	})
	require.NoError(t, err)
	defer f.Close()

	data, err := f.GetData(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"first"}, data)

	// Wait until at least one failed background refresh has happened.
	require.Eventually(t, func() bool {
		return calls.Load() > 1
	}, 2*time.Second, 10*time.Millisecond)

	data, err = f.GetData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, data, "last good snapshot should be retained")
}

func TestFetcher_ConcurrentFirstCallersShareOneFetch(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})

	f, err := New("payees", time.Hour, func(_ context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	})
	require.NoError(t, err)
	defer f.Close()

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			v, getErr := f.GetData(context.Background())
			require.NoError(t, getErr)
			results[n] = v
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "initial fetch should be deduplicated")
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}
