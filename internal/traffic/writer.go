package traffic

import (
	"fmt"

	"github.com/roach88/capstore/internal/capture"
	"github.com/roach88/capstore/internal/metrics"
)

// runWriter drains the write queue until it is closed and empty, or until
// ioCtx is cancelled. Failures are logged and counted; they never stop the
// loop.
func (h *HybridStore) runWriter() {
	defer close(h.writerDone)

	for {
		op, ok := h.queue.TryDequeue()
		if ok {
			h.process(op)
			h.depth.Set(float64(h.queue.Len()))
			continue
		}

		select {
		case <-h.ioCtx.Done():
			h.logger.Debug("writer stopping: cancelled", "pending", h.queue.Len())
			return
		case <-h.queue.Wait():
			if h.queue.Drained() {
				h.logger.Debug("writer stopping: queue closed")
				return
			}
		}
	}
}

func (h *HybridStore) process(op writeOp) {
	switch op.kind {
	case opUpsert:
		h.persist(op.record)
	case opClear:
		err := h.clearDurable()
		if err != nil {
			h.logger.Error("clear durable records failed", "error", err)
		}
		if op.done != nil {
			op.done <- err
		}
	case opFlush:
		op.done <- h.takeFailures()
	default:
		h.logger.Error("unknown write op", "kind", op.kind)
	}
}

func (h *HybridStore) persist(r capture.Record) {
	err := h.Initialize(h.ioCtx)
	if err == nil {
		err = h.db.Upsert(h.ioCtx, r)
	}
	if err != nil {
		metrics.DurableWrites.WithLabelValues(metrics.ResultError).Inc()
		h.failures++
		h.lastErr = err
		h.logger.Error("persist record failed", "id", r.ID, "url", r.URL, "error", err)
		return
	}
	metrics.DurableWrites.WithLabelValues(metrics.ResultOK).Inc()

	h.sinceTrim++
	if h.sinceTrim >= trimEvery {
		h.sinceTrim = 0
		h.trim()
	}
}

func (h *HybridStore) trim() {
	n, err := h.db.TrimToMostRecent(h.ioCtx, h.cfg.MaxPersisted)
	if err != nil {
		h.logger.Error("trim durable records failed", "max", h.cfg.MaxPersisted, "error", err)
		return
	}
	if n > 0 {
		metrics.RecordsTrimmed.Add(float64(n))
		h.logger.Debug("trimmed durable records", "deleted", n, "max", h.cfg.MaxPersisted)
	}
}

func (h *HybridStore) clearDurable() error {
	if err := h.Initialize(h.ioCtx); err != nil {
		return err
	}
	n, err := h.db.DeleteAll(h.ioCtx)
	if err != nil {
		return fmt.Errorf("clear durable records: %w", err)
	}
	h.logger.Debug("cleared durable records", "deleted", n)
	return nil
}

// takeFailures reports and resets the failures seen since the last flush.
func (h *HybridStore) takeFailures() error {
	if h.failures == 0 {
		return nil
	}
	err := fmt.Errorf("%w: %d since last flush, last: %w", ErrWriteFailed, h.failures, h.lastErr)
	h.failures = 0
	h.lastErr = nil
	return err
}
