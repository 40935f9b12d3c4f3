package traffic

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/capstore/internal/capture"
	"github.com/roach88/capstore/internal/metrics"
	"github.com/roach88/capstore/internal/store"
	"github.com/roach88/capstore/internal/testutil"
)

func TestHybridStore_ConcurrentAddsAllPersisted(t *testing.T) {
	ctx := context.Background()
	h, db := newTestHybrid(t, HybridConfig{MemoryCacheSize: 100, MaxPersisted: 1000})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := capture.NewRecord("GET", fmt.Sprintf("https://example.com/%d", i))
			h.Add(r)
		}(i)
	}
	wg.Wait()

	require.NoError(t, h.Flush(ctx))

	total, err := h.GetTotalCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50, total)

	all, err := db.GetAll(ctx, 0)
	require.NoError(t, err)
	seen := make(map[string]bool, len(all))
	for _, r := range all {
		assert.False(t, seen[r.ID], "duplicate id %s", r.ID)
		seen[r.ID] = true
	}
	assert.Len(t, seen, 50)
	assert.Equal(t, 50, h.Count())
}

func TestHybridStore_DurableKeepsFullHistory(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHybrid(t, HybridConfig{MemoryCacheSize: 5, MaxPersisted: 1000})

	for _, r := range testutil.Records(20) {
		h.Add(r)
	}
	require.NoError(t, h.Flush(ctx))

	assert.Equal(t, 5, h.Count())
	total, err := h.GetTotalCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, total)

	old, ok, err := h.GetRecord(ctx, "r-0")
	require.NoError(t, err)
	require.True(t, ok, "evicted record falls back to the durable layer")
	assert.Equal(t, testutil.Epoch, old.Timestamp)

	paged, err := h.GetRecordsPaged(ctx, 8)
	require.NoError(t, err)
	assert.Len(t, paged, 8)
	assert.Equal(t, "r-19", paged[0].ID)
}

func TestHybridStore_EventuallyDurableWithoutFlush(t *testing.T) {
	ctx := context.Background()
	h, db := newTestHybrid(t, HybridConfig{MemoryCacheSize: 10, MaxPersisted: 100})

	h.Add(testutil.Record("a", 0))

	require.Eventually(t, func() bool {
		if !db.Ready() {
			return false
		}
		_, ok, err := db.GetByID(ctx, "a")
		return err == nil && ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHybridStore_TrimsEveryHundredWrites(t *testing.T) {
	ctx := context.Background()
	h, db := newTestHybrid(t, HybridConfig{MemoryCacheSize: 10, MaxPersisted: 150})

	for _, r := range testutil.Records(250) {
		h.Add(r)
	}
	require.NoError(t, h.Flush(ctx))

	// Trim runs after writes 100 (no-op) and 200 (down to 150); the last
	// 50 writes land after it.
	total, err := db.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 200, total)

	_, ok, err := db.GetByID(ctx, "r-49")
	require.NoError(t, err)
	assert.False(t, ok, "oldest records trimmed")

	_, ok, err = db.GetByID(ctx, "r-50")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHybridStore_WriteFailuresDoNotStopWriter(t *testing.T) {
	ctx := context.Background()
	fd := newFaultyDurable(t)
	fd.failUpsert("bad-1", "bad-2")
	h := newTestHybridOver(t, fd, HybridConfig{MemoryCacheSize: 10, MaxPersisted: 100})

	errCounter := metrics.DurableWrites.WithLabelValues(metrics.ResultError)
	before := promtest.ToFloat64(errCounter)

	h.Add(testutil.Record("ok-1", 0))
	h.Add(testutil.Record("bad-1", time.Second))
	h.Add(testutil.Record("bad-2", 2*time.Second))
	h.Add(testutil.Record("ok-2", 3*time.Second))

	err := h.Flush(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWriteFailed))
	assert.True(t, errors.Is(err, errInjected))
	assert.Contains(t, err.Error(), "2 since last flush")
	assert.Equal(t, before+2, promtest.ToFloat64(errCounter))

	// Failed records stay visible in memory.
	assert.Equal(t, 4, h.Count())

	h.Add(testutil.Record("ok-3", 4*time.Second))
	require.NoError(t, h.Flush(ctx), "failures are reported once")

	total, err := h.GetTotalCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestHybridStore_InitializeLoadsMostRecent(t *testing.T) {
	ctx := context.Background()
	path := testDBPath(t)
	seedDB(t, path, testutil.Records(10)...)

	h := newTestHybridOver(t, store.New(path), HybridConfig{MemoryCacheSize: 4, MaxPersisted: 100})
	assert.Equal(t, StateUninitialized, h.State())

	require.NoError(t, h.Initialize(ctx))
	assert.Equal(t, StateReady, h.State())
	assert.Equal(t, []string{"r-9", "r-8", "r-7", "r-6"}, testutil.IDs(h.GetRecords()))
}

func TestHybridStore_InitializeOnceUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	fd := newFaultyDurable(t)
	h := newTestHybridOver(t, fd, HybridConfig{MemoryCacheSize: 10, MaxPersisted: 100})

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- h.Initialize(ctx)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), fd.initCalls.Load())
	assert.Equal(t, StateReady, h.State())
}

func TestHybridStore_InitializeRetriesAfterFailure(t *testing.T) {
	ctx := context.Background()
	fd := newFaultyDurable(t)
	fd.initFailures = 1
	h := newTestHybridOver(t, fd, HybridConfig{MemoryCacheSize: 10, MaxPersisted: 100})

	err := h.Initialize(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errInjected))
	assert.Equal(t, StateUninitialized, h.State())

	_, err = h.GetTotalCount(ctx)
	require.NoError(t, err, "next durable operation retries initialization")
	assert.Equal(t, StateReady, h.State())
}

func TestHybridStore_ClearIsOrderedAfterEarlierAdds(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHybrid(t, HybridConfig{MemoryCacheSize: 50, MaxPersisted: 100})

	for _, r := range testutil.Records(10) {
		h.Add(r)
	}
	h.Clear()
	h.Add(testutil.Record("after-1", time.Hour))
	h.Add(testutil.Record("after-2", 2*time.Hour))
	require.NoError(t, h.Flush(ctx))

	total, err := h.GetTotalCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, []string{"after-2", "after-1"}, testutil.IDs(h.GetRecords()))
}

func TestHybridStore_ClearAsyncReportsDurableFailure(t *testing.T) {
	ctx := context.Background()
	fd := newFaultyDurable(t)
	fd.deleteAllErr = errInjected
	h := newTestHybridOver(t, fd, HybridConfig{MemoryCacheSize: 10, MaxPersisted: 100})

	var cleared atomic.Int32
	h.OnCleared(func() { cleared.Add(1) })
	h.Add(testutil.Record("a", 0))

	err := h.ClearAsync(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errInjected))
	assert.Equal(t, 0, h.Count())
	assert.Equal(t, int32(1), cleared.Load())
}

func TestHybridStore_ClearAsyncBeforeInitialize(t *testing.T) {
	ctx := context.Background()
	path := testDBPath(t)
	seedDB(t, path, testutil.Records(3)...)

	h := newTestHybridOver(t, store.New(path), HybridConfig{MemoryCacheSize: 10, MaxPersisted: 100})
	require.Equal(t, StateUninitialized, h.State())

	require.NoError(t, h.ClearAsync(ctx))
	assert.Empty(t, h.GetRecords(), "startup load must not refill memory after a clear")
	assert.Equal(t, 0, h.Count())

	total, err := h.GetTotalCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestHybridStore_ClearThenFlushBeforeInitialize(t *testing.T) {
	ctx := context.Background()
	path := testDBPath(t)
	seedDB(t, path, testutil.Records(3)...)

	h := newTestHybridOver(t, store.New(path), HybridConfig{MemoryCacheSize: 10, MaxPersisted: 100})
	h.Clear()
	h.Add(testutil.Record("after", time.Hour))
	require.NoError(t, h.Flush(ctx))

	assert.Equal(t, []string{"after"}, testutil.IDs(h.GetRecords()))
	total, err := h.GetTotalCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestHybridStore_InitializeAfterClearSkipsLoad(t *testing.T) {
	ctx := context.Background()
	path := testDBPath(t)
	seedDB(t, path, testutil.Records(3)...)

	h := newTestHybridOver(t, store.New(path), HybridConfig{MemoryCacheSize: 10, MaxPersisted: 100})
	h.Clear()
	require.NoError(t, h.Initialize(ctx))
	assert.Empty(t, h.GetRecords())

	require.NoError(t, h.Flush(ctx))
	assert.Empty(t, h.GetRecords())
}

func TestHybridStore_ClearRacesStartupInitialize(t *testing.T) {
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		path := testDBPath(t)
		seedDB(t, path, testutil.Records(5)...)

		// Retention > 0 starts a cleanup pass that initializes concurrently.
		fd := &faultyDurable{Store: store.New(path), failIDs: make(map[string]bool)}
		h := newTestHybridOver(t, fd, HybridConfig{
			MemoryCacheSize: 10,
			MaxPersisted:    100,
			Retention:       24 * time.Hour,
		}, WithClock(testutil.NewClock(testutil.Epoch.Add(time.Hour))))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, h.Initialize(ctx))
		}()
		go func() {
			defer wg.Done()
			h.Clear()
		}()
		wg.Wait()
		require.NoError(t, h.Flush(ctx))

		assert.Empty(t, h.GetRecords(), "iteration %d", i)
		total, err := h.GetTotalCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, total, "iteration %d", i)
		require.NoError(t, h.Close())
	}
}

func TestHybridStore_CloseDrainsPendingWrites(t *testing.T) {
	ctx := context.Background()
	path := testDBPath(t)
	h, err := NewHybridStore(store.New(path), HybridConfig{MemoryCacheSize: 10, MaxPersisted: 1000},
		WithLogger(discardLogger()))
	require.NoError(t, err)

	for _, r := range testutil.Records(30) {
		h.Add(r)
	}
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())

	assert.True(t, errors.Is(h.Flush(ctx), ErrClosed))
	assert.NotPanics(t, func() { h.Add(testutil.Record("late", time.Hour)) })

	db, err := store.Open(ctx, path)
	require.NoError(t, err)
	defer db.Close()
	total, err := db.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30, total)
}

func TestHybridStore_CloseGivesUpOnStuckWriter(t *testing.T) {
	shortGrace(t, 50*time.Millisecond, 50*time.Millisecond)

	fd := newFaultyDurable(t)
	fd.block = make(chan struct{})
	h, err := NewHybridStore(fd, HybridConfig{MemoryCacheSize: 10, MaxPersisted: 100},
		WithLogger(discardLogger()))
	require.NoError(t, err)

	h.Add(testutil.Record("stuck", 0))

	start := time.Now()
	require.NoError(t, h.Close())
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestHybridStore_QueueDepthPerStore(t *testing.T) {
	ctx := context.Background()

	stuck := newFaultyDurable(t)
	stuck.block = make(chan struct{})
	a := newTestHybridOver(t, stuck, HybridConfig{MemoryCacheSize: 10, MaxPersisted: 100, Name: "depth-a"})
	t.Cleanup(func() { close(stuck.block) })

	b, _ := newTestHybrid(t, HybridConfig{MemoryCacheSize: 10, MaxPersisted: 100, Name: "depth-b"})

	for _, r := range testutil.Records(3) {
		a.Add(r)
	}
	b.Add(testutil.Record("b-1", 0))
	require.NoError(t, b.Flush(ctx))

	depthA := metrics.QueueDepth.WithLabelValues("depth-a")
	depthB := metrics.QueueDepth.WithLabelValues("depth-b")
	require.Eventually(t, func() bool {
		return promtest.ToFloat64(depthB) == 0
	}, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, promtest.ToFloat64(depthA), float64(2),
		"a drained store does not overwrite a blocked one")
}

func TestHybridStore_RejectsInvalidConfig(t *testing.T) {
	db := store.New(testDBPath(t))

	_, err := NewHybridStore(db, HybridConfig{MemoryCacheSize: 100, MaxPersisted: 10})
	assert.Error(t, err)

	_, err = NewHybridStore(db, HybridConfig{MemoryCacheSize: -1, MaxPersisted: 10})
	assert.Error(t, err)

	_, err = NewHybridStore(db, HybridConfig{MemoryCacheSize: 10, MaxPersisted: 100, Retention: -time.Hour})
	assert.Error(t, err)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "uninitialized", StateUninitialized.String())
	assert.Equal(t, "initializing", StateInitializing.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "State(9)", State(9).String())
}
