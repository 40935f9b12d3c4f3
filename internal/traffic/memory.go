package traffic

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/capstore/internal/cache"
	"github.com/roach88/capstore/internal/capture"
	"github.com/roach88/capstore/internal/metrics"
)

// MemoryStore is a Store backed only by the bounded cache.
type MemoryStore struct {
	events
	snapshotSearch

	cache *cache.Cache
}

// NewMemoryStore returns a MemoryStore retaining at most capacity records.
func NewMemoryStore(capacity int, opts ...Option) (*MemoryStore, error) {
	c, err := cache.New(capacity)
	if err != nil {
		return nil, fmt.Errorf("create memory store: %w", err)
	}
	o := applyOptions(opts)
	s := &MemoryStore{cache: c}
	s.events.logger = o.logger
	s.snapshotSearch = snapshotSearch{snapshot: c.GetAll}
	return s, nil
}

func (s *MemoryStore) Add(r capture.Record) {
	r = r.Clone()
	s.cache.Add(r)
	metrics.RecordsAdded.Inc()
	s.fireAdded(r)
}

func (s *MemoryStore) GetRecords() []capture.Record {
	return s.cache.GetAll()
}

func (s *MemoryStore) GetRecord(_ context.Context, id string) (capture.Record, bool, error) {
	r, ok := s.cache.GetByID(id)
	return r, ok, nil
}

func (s *MemoryStore) Count() int {
	return s.cache.Len()
}

func (s *MemoryStore) Clear() {
	s.cache.Clear()
	s.fireCleared()
}

func (s *MemoryStore) ClearAsync(context.Context) error {
	s.Clear()
	return nil
}

func (s *MemoryStore) GetTotalCount(context.Context) (int, error) {
	return s.cache.Len(), nil
}

func (s *MemoryStore) Flush(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// snapshotSearch answers the query half of Store by scanning an in-memory
// snapshot. Results keep the snapshot's newest-first order.
type snapshotSearch struct {
	snapshot func() []capture.Record
}

func (s snapshotSearch) SearchByURL(_ context.Context, text string, limit int) ([]capture.Record, error) {
	return s.collect(limit, func(r capture.Record) bool {
		return capture.ContainsFold(r.URL, text)
	}), nil
}

func (s snapshotSearch) GetByMethod(_ context.Context, method string, limit int) ([]capture.Record, error) {
	return s.collect(limit, func(r capture.Record) bool {
		return strings.EqualFold(r.Method, method)
	}), nil
}

func (s snapshotSearch) GetByStatusRange(_ context.Context, minStatus, maxStatus, limit int) ([]capture.Record, error) {
	return s.collect(limit, func(r capture.Record) bool {
		return r.StatusCode >= minStatus && r.StatusCode <= maxStatus
	}), nil
}

func (s snapshotSearch) Search(_ context.Context, f capture.Filter, limit int) ([]capture.Record, error) {
	return s.collect(limit, f.Match), nil
}

func (s snapshotSearch) GetRecordsPaged(_ context.Context, limit int) ([]capture.Record, error) {
	return s.collect(limit, nil), nil
}

// collect filters the snapshot with keep (nil keeps everything), stopping at
// limit matches. A limit <= 0 means no limit.
func (s snapshotSearch) collect(limit int, keep func(capture.Record) bool) []capture.Record {
	out := []capture.Record{}
	for _, r := range s.snapshot() {
		if keep != nil && !keep(r) {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
