package testutil

import (
	"fmt"
	"sync"
	"time"

	"github.com/roach88/capstore/internal/capture"
)

// Epoch is the base timestamp for records built by this package.
var Epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// Record returns a completed GET 200 record with the given id, timestamped
// offset after Epoch.
func Record(id string, offset time.Duration) capture.Record {
	return capture.Record{
		ID:              id,
		Timestamp:       Epoch.Add(offset),
		Duration:        25 * time.Millisecond,
		Method:          "GET",
		URL:             "https://api.example.com/items/" + id,
		RequestHeaders:  capture.Headers{"Accept": {"application/json"}},
		ResponseHeaders: capture.Headers{"Content-Type": {"application/json"}},
		ResponseBody:    capture.Text(`{"id":"` + id + `"}`),
		StatusCode:      200,
		ReasonPhrase:    "OK",
		IsComplete:      true,
	}
}

// Records returns n records r-0..r-(n-1), one second apart, oldest first.
func Records(n int) []capture.Record {
	out := make([]capture.Record, n)
	for i := range out {
		out[i] = Record(fmt.Sprintf("r-%d", i), time.Duration(i)*time.Second)
	}
	return out
}

// IDs returns the ids of records in order.
func IDs(records []capture.Record) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids
}

// SequentialIDs hands out prefix-1, prefix-2, ... and is safe for concurrent
// use.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a generator. An empty prefix means "rec".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "rec"
	}
	return &SequentialIDs{prefix: prefix}
}

// Next returns the next id.
func (g *SequentialIDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
