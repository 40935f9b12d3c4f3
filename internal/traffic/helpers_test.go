package traffic

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/capstore/internal/capture"
	"github.com/roach88/capstore/internal/store"
)

var errInjected = errors.New("injected failure")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "captures.db")
}

// newTestHybrid creates a HybridStore over a fresh SQLite file and closes it
// when the test ends.
func newTestHybrid(t *testing.T, cfg HybridConfig, opts ...Option) (*HybridStore, *store.Store) {
	t.Helper()
	db := store.New(testDBPath(t))
	return newTestHybridOver(t, db, cfg, opts...), db
}

func newTestHybridOver(t *testing.T, db Durable, cfg HybridConfig, opts ...Option) *HybridStore {
	t.Helper()
	h, err := NewHybridStore(db, cfg, append([]Option{WithLogger(discardLogger())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

// seedDB writes records straight to the SQLite file at path.
func seedDB(t *testing.T, path string, records ...capture.Record) {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, path)
	require.NoError(t, err)
	defer db.Close()
	for _, r := range records {
		require.NoError(t, db.Upsert(ctx, r))
	}
}

// faultyDurable wraps a real store with injectable failures.
type faultyDurable struct {
	*store.Store

	mu           sync.Mutex
	failIDs      map[string]bool
	initFailures int
	deleteAllErr error
	block        chan struct{}

	initCalls atomic.Int32
}

func newFaultyDurable(t *testing.T) *faultyDurable {
	return &faultyDurable{
		Store:   store.New(testDBPath(t)),
		failIDs: make(map[string]bool),
	}
}

func (f *faultyDurable) failUpsert(ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.failIDs[id] = true
	}
}

func (f *faultyDurable) Initialize(ctx context.Context) error {
	f.initCalls.Add(1)
	f.mu.Lock()
	if f.initFailures > 0 {
		f.initFailures--
		f.mu.Unlock()
		return errInjected
	}
	f.mu.Unlock()
	// Widen the window for concurrent callers.
	time.Sleep(10 * time.Millisecond)
	return f.Store.Initialize(ctx)
}

func (f *faultyDurable) Upsert(ctx context.Context, r capture.Record) error {
	f.mu.Lock()
	fail, block := f.failIDs[r.ID], f.block
	f.mu.Unlock()

	if fail {
		return errInjected
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.Store.Upsert(ctx, r)
}

func (f *faultyDurable) DeleteAll(ctx context.Context) (int64, error) {
	f.mu.Lock()
	err := f.deleteAllErr
	f.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return f.Store.DeleteAll(ctx)
}

// shortGrace shrinks the shutdown grace periods for one test.
func shortGrace(t *testing.T, writer, cleanup time.Duration) {
	t.Helper()
	prevWriter, prevCleanup := writerGrace, cleanupGrace
	writerGrace, cleanupGrace = writer, cleanup
	t.Cleanup(func() {
		writerGrace, cleanupGrace = prevWriter, prevCleanup
	})
}
