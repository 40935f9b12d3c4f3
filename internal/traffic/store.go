package traffic

import (
	"context"
	"errors"

	"github.com/roach88/capstore/internal/capture"
)

// ErrClosed is returned by operations on a store after Close.
var ErrClosed = errors.New("traffic store is closed")

// ErrWriteFailed is wrapped by Flush when background writes failed since the
// previous flush.
var ErrWriteFailed = errors.New("durable write failed")

// Store is the record store contract shared by MemoryStore and HybridStore.
type Store interface {
	// Add accepts a record. It never blocks on I/O and never fails.
	Add(r capture.Record)

	// GetRecords returns the in-memory records, newest first.
	GetRecords() []capture.Record

	// GetRecord looks a record up by id, memory first.
	GetRecord(ctx context.Context, id string) (capture.Record, bool, error)

	// Count returns the number of in-memory records.
	Count() int

	// Clear empties the store and notifies OnCleared listeners.
	Clear()

	// ClearAsync is Clear that waits for durable deletion to finish.
	ClearAsync(ctx context.Context) error

	OnAdded(fn func(capture.Record)) (unsubscribe func())
	OnCleared(fn func()) (unsubscribe func())

	SearchByURL(ctx context.Context, text string, limit int) ([]capture.Record, error)
	GetByMethod(ctx context.Context, method string, limit int) ([]capture.Record, error)
	GetByStatusRange(ctx context.Context, minStatus, maxStatus, limit int) ([]capture.Record, error)
	Search(ctx context.Context, f capture.Filter, limit int) ([]capture.Record, error)

	// GetTotalCount counts all records, including those no longer in memory.
	GetTotalCount(ctx context.Context) (int, error)

	// GetRecordsPaged returns the newest limit records from the full history.
	GetRecordsPaged(ctx context.Context, limit int) ([]capture.Record, error)

	// Flush waits until every record added before the call is durable.
	Flush(ctx context.Context) error

	Close() error
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*HybridStore)(nil)
)
