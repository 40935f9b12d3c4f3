// Package cache provides the bounded in-memory projection of the most
// recently captured records.
package cache

import (
	"container/heap"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/capstore/internal/capture"
)

// ErrInvalidCapacity is returned by New for a non-positive capacity.
var ErrInvalidCapacity = errors.New("cache capacity must be positive")

// Cache is a bounded, concurrency-safe collection of records.
//
// When full, the record with the oldest timestamp is evicted; equal
// timestamps evict the earliest inserted first. A record older than every
// cached record is itself the one dropped, so the cache always holds the
// max most-recently-timestamped records among those inserted.
//
// The cache never calls back into consumer code while holding its lock.
type Cache struct {
	mu      sync.Mutex
	max     int
	seq     uint64
	entries entryHeap
	byID    map[string]*entry
}

type entry struct {
	record capture.Record
	seq    uint64
	index  int
}

// New creates a cache holding at most capacity records.
func New(capacity int) (*Cache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("new cache: %w (got %d)", ErrInvalidCapacity, capacity)
	}
	return &Cache{
		max:     capacity,
		entries: make(entryHeap, 0, capacity),
		byID:    make(map[string]*entry, capacity),
	}, nil
}

// Add inserts r, evicting the oldest record first when the cache is full.
// It reports whether r is retained. Re-adding a cached id replaces it.
func (c *Cache) Add(r capture.Record) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addLocked(r)
}

// Load bulk-inserts records, skipping ids that are already cached.
// It returns the number of records inserted.
func (c *Cache) Load(records []capture.Record) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, r := range records {
		if _, ok := c.byID[r.ID]; ok {
			continue
		}
		if c.addLocked(r) {
			n++
		}
	}
	return n
}

func (c *Cache) addLocked(r capture.Record) bool {
	if existing, ok := c.byID[r.ID]; ok {
		heap.Remove(&c.entries, existing.index)
		delete(c.byID, r.ID)
	}

	c.seq++
	e := &entry{record: r, seq: c.seq}

	if len(c.entries) >= c.max {
		oldest := c.entries[0]
		if e.less(oldest) {
			return false
		}
		heap.Pop(&c.entries)
		delete(c.byID, oldest.record.ID)
	}

	heap.Push(&c.entries, e)
	c.byID[r.ID] = e
	return true
}

// GetAll returns a snapshot ordered newest timestamp first.
// Records sharing a timestamp are ordered latest inserted first.
func (c *Cache) GetAll() []capture.Record {
	c.mu.Lock()
	sorted := make([]*entry, len(c.entries))
	copy(sorted, c.entries)
	c.mu.Unlock()

	sort.Slice(sorted, func(i, j int) bool {
		return sorted[j].less(sorted[i])
	})

	out := make([]capture.Record, len(sorted))
	for i, e := range sorted {
		out[i] = e.record
	}
	return out
}

// GetByID returns the cached record with the given id.
func (c *Cache) GetByID(id string) (capture.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.byID[id]
	if !ok {
		return capture.Record{}, false
	}
	return e.record, true
}

// Contains reports whether id is cached.
func (c *Cache) Contains(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.byID[id]
	return ok
}

// Len returns the number of cached records.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Cap returns the configured maximum.
func (c *Cache) Cap() int {
	return c.max
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(entryHeap, 0, c.max)
	c.byID = make(map[string]*entry, c.max)
}

// less orders entries oldest first: by timestamp, then insertion sequence.
func (e *entry) less(o *entry) bool {
	if !e.record.Timestamp.Equal(o.record.Timestamp) {
		return e.record.Timestamp.Before(o.record.Timestamp)
	}
	return e.seq < o.seq
}

// entryHeap is a min-heap of entries, oldest at the root.
type entryHeap []*entry

func (h entryHeap) Len() int           { return len(h) }
func (h entryHeap) Less(i, j int) bool { return h[i].less(h[j]) }

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
