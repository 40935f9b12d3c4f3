package traffic

import (
	"sync"

	"github.com/roach88/capstore/internal/capture"
)

// opKind distinguishes write-queue operations.
type opKind int

const (
	// opUpsert persists a record.
	opUpsert opKind = iota + 1
	// opClear deletes every durable record.
	opClear
	// opFlush is a barrier: it completes once every earlier op is processed.
	opFlush
)

func (k opKind) String() string {
	switch k {
	case opUpsert:
		return "upsert"
	case opClear:
		return "clear"
	case opFlush:
		return "flush"
	default:
		return "unknown"
	}
}

// writeOp is one unit of work for the background writer.
// done, when non-nil, receives the outcome and must be buffered.
type writeOp struct {
	kind   opKind
	record capture.Record
	done   chan error
}

// writeQueue is an unbounded multi-producer FIFO drained by one writer.
//
// Producers never block: Enqueue appends under a mutex and signals through a
// buffered channel of size 1, so bursts coalesce into one wakeup.
type writeQueue struct {
	mu     sync.Mutex
	ops    []writeOp
	closed bool
	signal chan struct{}
}

func newWriteQueue() *writeQueue {
	return &writeQueue{
		ops:    make([]writeOp, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends op. Returns false if the queue is closed.
func (q *writeQueue) Enqueue(op writeOp) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.ops = append(q.ops, op)

	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front op without blocking.
func (q *writeQueue) TryDequeue() (writeOp, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ops) == 0 {
		return writeOp{}, false
	}

	op := q.ops[0]
	// Release the record's headers and bodies for GC.
	q.ops[0] = writeOp{}

	if len(q.ops) == 1 {
		q.ops = q.ops[:0]
	} else {
		q.ops = q.ops[1:]
	}

	return op, true
}

// Wait returns a channel that signals when ops may be available.
// It is closed by Close.
func (q *writeQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued ops.
func (q *writeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Drained reports whether the queue is closed and empty.
func (q *writeQueue) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.ops) == 0
}

// Close stops accepting ops and wakes the writer. Queued ops remain
// dequeueable.
func (q *writeQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
