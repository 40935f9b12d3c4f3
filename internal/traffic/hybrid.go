package traffic

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/capstore/internal/cache"
	"github.com/roach88/capstore/internal/capture"
	"github.com/roach88/capstore/internal/metrics"
)

// Durable is the persistence layer used by HybridStore. *store.Store
// implements it.
type Durable interface {
	Initialize(ctx context.Context) error
	Upsert(ctx context.Context, r capture.Record) error
	GetByID(ctx context.Context, id string) (capture.Record, bool, error)
	GetAll(ctx context.Context, limit int) ([]capture.Record, error)
	Count(ctx context.Context) (int, error)
	SearchByURLSubstring(ctx context.Context, text string, limit int) ([]capture.Record, error)
	FilterByMethod(ctx context.Context, method string, limit int) ([]capture.Record, error)
	FilterByStatusRange(ctx context.Context, minStatus, maxStatus, limit int) ([]capture.Record, error)
	Search(ctx context.Context, f capture.Filter, limit int) ([]capture.Record, error)
	DeleteAll(ctx context.Context) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	TrimToMostRecent(ctx context.Context, n int) (int64, error)
	Close() error
}

// Defaults for HybridConfig fields left at zero.
const (
	DefaultMemoryCacheSize = 200
	DefaultMaxPersisted    = 10000
	DefaultCleanupInterval = time.Hour
	DefaultName            = "default"
)

// trimEvery is the number of successful writes between max-count trims.
const trimEvery = 100

// Shutdown grace periods. Variables so tests can shorten them.
var (
	writerGrace  = 5 * time.Second
	cleanupGrace = 1 * time.Second
)

// HybridConfig sizes a HybridStore.
type HybridConfig struct {
	// MemoryCacheSize bounds the in-memory cache.
	MemoryCacheSize int
	// MaxPersisted bounds the durable table; enforced every trimEvery writes.
	MaxPersisted int
	// Retention is the age after which durable records are deleted.
	// Zero disables age-based cleanup.
	Retention time.Duration
	// CleanupInterval is the period between retention passes.
	CleanupInterval time.Duration
	// Name labels this store's metrics.
	Name string
}

func (c HybridConfig) withDefaults() HybridConfig {
	if c.MemoryCacheSize == 0 {
		c.MemoryCacheSize = DefaultMemoryCacheSize
	}
	if c.MaxPersisted == 0 {
		c.MaxPersisted = DefaultMaxPersisted
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
	if c.Name == "" {
		c.Name = DefaultName
	}
	return c
}

// State is the HybridStore initialization state.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// HybridStore keeps recent records in memory and persists every record
// through a single background writer.
type HybridStore struct {
	events

	cfg    HybridConfig
	logger *slog.Logger
	clock  Clock
	cache  *cache.Cache
	db     Durable
	queue  *writeQueue
	depth  prometheus.Gauge

	initMu sync.Mutex
	state  atomic.Int32

	// loadMu orders the startup load against Clear. Once a clear has been
	// issued the startup load is skipped: the rows it would bring back are
	// already queued for deletion.
	loadMu  sync.Mutex
	cleared bool

	// ioCtx bounds durable I/O issued by background tasks. It is cancelled
	// once the writer's shutdown grace period has passed.
	ioCtx       context.Context
	cancelIO    context.CancelFunc
	stopCleanup context.CancelFunc
	writerDone  chan struct{}
	cleanupDone chan struct{}

	closeOnce sync.Once
	closeErr  error

	// cleanupPasses counts completed retention passes (observed by tests).
	cleanupPasses atomic.Int32

	// Owned by the writer goroutine.
	sinceTrim int
	failures  int
	lastErr   error
}

// NewHybridStore creates a HybridStore over db and starts its writer and
// cleanup goroutines. Durable initialization happens lazily, on the first
// operation that needs it, or eagerly via Initialize.
func NewHybridStore(db Durable, cfg HybridConfig, opts ...Option) (*HybridStore, error) {
	cfg = cfg.withDefaults()
	if cfg.MaxPersisted < cfg.MemoryCacheSize {
		return nil, fmt.Errorf("create hybrid store: max persisted %d is below memory cache size %d",
			cfg.MaxPersisted, cfg.MemoryCacheSize)
	}
	if cfg.Retention < 0 {
		return nil, fmt.Errorf("create hybrid store: negative retention %s", cfg.Retention)
	}

	c, err := cache.New(cfg.MemoryCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create hybrid store: %w", err)
	}

	o := applyOptions(opts)
	h := &HybridStore{
		cfg:         cfg,
		logger:      o.logger,
		clock:       o.clock,
		cache:       c,
		db:          db,
		queue:       newWriteQueue(),
		depth:       metrics.QueueDepth.WithLabelValues(cfg.Name),
		writerDone:  make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
	h.events.logger = o.logger

	h.ioCtx, h.cancelIO = context.WithCancel(context.Background())
	cleanupCtx, stopCleanup := context.WithCancel(h.ioCtx)
	h.stopCleanup = stopCleanup

	go h.runWriter()
	go h.runCleanup(cleanupCtx)

	return h, nil
}

// State returns the current initialization state.
func (h *HybridStore) State() State {
	return State(h.state.Load())
}

// Initialize opens the durable layer and loads the most recent records into
// memory. Concurrent callers block until the first finishes; after success
// further calls return immediately. A failed attempt may be retried.
func (h *HybridStore) Initialize(ctx context.Context) error {
	if h.State() == StateReady {
		return nil
	}

	h.initMu.Lock()
	defer h.initMu.Unlock()

	if h.State() == StateReady {
		return nil
	}

	h.state.Store(int32(StateInitializing))

	if err := h.db.Initialize(ctx); err != nil {
		h.state.Store(int32(StateUninitialized))
		return fmt.Errorf("initialize hybrid store: %w", err)
	}

	recent, err := h.db.GetAll(ctx, h.cache.Cap())
	if err != nil {
		h.state.Store(int32(StateUninitialized))
		return fmt.Errorf("load recent records: %w", err)
	}
	loaded := h.loadRecent(recent)

	h.state.Store(int32(StateReady))
	h.logger.Debug("hybrid store ready", "loaded", loaded)
	return nil
}

func (h *HybridStore) loadRecent(recent []capture.Record) int {
	h.loadMu.Lock()
	defer h.loadMu.Unlock()
	if h.cleared {
		return 0
	}
	return h.cache.Load(recent)
}

// clearMemory empties the cache and suppresses any startup load that has
// not yet happened.
func (h *HybridStore) clearMemory() {
	h.loadMu.Lock()
	h.cleared = true
	h.cache.Clear()
	h.loadMu.Unlock()
}

// Add caches r, notifies OnAdded listeners and queues r for persistence.
func (h *HybridStore) Add(r capture.Record) {
	r = r.Clone()
	h.cache.Add(r)
	metrics.RecordsAdded.Inc()
	h.fireAdded(r)

	if !h.queue.Enqueue(writeOp{kind: opUpsert, record: r}) {
		h.logger.Warn("store closed, record not persisted", "id", r.ID)
		return
	}
	h.depth.Set(float64(h.queue.Len()))
}

func (h *HybridStore) GetRecords() []capture.Record {
	return h.cache.GetAll()
}

// GetRecord returns the record with id from memory, falling back to the
// durable layer.
func (h *HybridStore) GetRecord(ctx context.Context, id string) (capture.Record, bool, error) {
	if r, ok := h.cache.GetByID(id); ok {
		return r, true, nil
	}
	if err := h.Initialize(ctx); err != nil {
		return capture.Record{}, false, err
	}
	return h.db.GetByID(ctx, id)
}

func (h *HybridStore) Count() int {
	return h.cache.Len()
}

// Clear empties memory, notifies OnCleared listeners and queues durable
// deletion behind every earlier Add.
func (h *HybridStore) Clear() {
	h.clearMemory()
	h.fireCleared()
	if !h.queue.Enqueue(writeOp{kind: opClear}) {
		h.logger.Warn("store closed, durable records not cleared")
	}
}

// ClearAsync empties memory and waits for durable deletion before notifying
// OnCleared listeners. Listeners are notified even when deletion fails.
func (h *HybridStore) ClearAsync(ctx context.Context) error {
	h.clearMemory()

	done := make(chan error, 1)
	if !h.queue.Enqueue(writeOp{kind: opClear, done: done}) {
		h.fireCleared()
		return ErrClosed
	}

	err := h.await(ctx, done)
	h.fireCleared()
	return err
}

// Flush waits until every record added before the call has been written.
// It returns an error wrapping ErrWriteFailed if any write failed since the
// previous Flush.
func (h *HybridStore) Flush(ctx context.Context) error {
	done := make(chan error, 1)
	if !h.queue.Enqueue(writeOp{kind: opFlush, done: done}) {
		return ErrClosed
	}
	return h.await(ctx, done)
}

func (h *HybridStore) await(ctx context.Context, done <-chan error) error {
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-h.writerDone:
		// The writer may have answered just before exiting.
		select {
		case err := <-done:
			return err
		default:
			return ErrClosed
		}
	}
}

func (h *HybridStore) SearchByURL(ctx context.Context, text string, limit int) ([]capture.Record, error) {
	if err := h.Initialize(ctx); err != nil {
		return nil, err
	}
	return h.db.SearchByURLSubstring(ctx, text, limit)
}

func (h *HybridStore) GetByMethod(ctx context.Context, method string, limit int) ([]capture.Record, error) {
	if err := h.Initialize(ctx); err != nil {
		return nil, err
	}
	return h.db.FilterByMethod(ctx, method, limit)
}

func (h *HybridStore) GetByStatusRange(ctx context.Context, minStatus, maxStatus, limit int) ([]capture.Record, error) {
	if err := h.Initialize(ctx); err != nil {
		return nil, err
	}
	return h.db.FilterByStatusRange(ctx, minStatus, maxStatus, limit)
}

func (h *HybridStore) Search(ctx context.Context, f capture.Filter, limit int) ([]capture.Record, error) {
	if err := h.Initialize(ctx); err != nil {
		return nil, err
	}
	return h.db.Search(ctx, f, limit)
}

func (h *HybridStore) GetTotalCount(ctx context.Context) (int, error) {
	if err := h.Initialize(ctx); err != nil {
		return 0, err
	}
	return h.db.Count(ctx)
}

func (h *HybridStore) GetRecordsPaged(ctx context.Context, limit int) ([]capture.Record, error) {
	if err := h.Initialize(ctx); err != nil {
		return nil, err
	}
	return h.db.GetAll(ctx, limit)
}

// Close stops accepting writes, lets the writer drain for up to writerGrace
// and the cleanup task stop for up to cleanupGrace, then closes the durable
// layer. Only the first call does any work.
func (h *HybridStore) Close() error {
	h.closeOnce.Do(func() {
		h.queue.Close()
		h.stopCleanup()

		if !waitFor(h.writerDone, writerGrace) {
			h.logger.Warn("writer did not drain before shutdown", "pending", h.queue.Len())
		}
		h.cancelIO()

		if !waitFor(h.cleanupDone, cleanupGrace) {
			h.logger.Warn("cleanup did not stop before shutdown")
		}

		metrics.QueueDepth.DeleteLabelValues(h.cfg.Name)

		if err := h.db.Close(); err != nil {
			h.closeErr = fmt.Errorf("close durable store: %w", err)
		}
	})
	return h.closeErr
}

func waitFor(done <-chan struct{}, timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-done:
		return true
	case <-t.C:
		return false
	}
}
