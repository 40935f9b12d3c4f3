package traffic

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/capstore/internal/metrics"
)

// runCleanup deletes expired durable records once at startup and then every
// CleanupInterval until ctx is cancelled.
func (h *HybridStore) runCleanup(ctx context.Context) {
	defer close(h.cleanupDone)

	if h.cfg.Retention <= 0 {
		return
	}

	h.cleanupPass(ctx)

	ticker := time.NewTicker(h.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.cleanupPass(ctx)
		}
	}
}

func (h *HybridStore) cleanupPass(ctx context.Context) {
	defer h.cleanupPasses.Add(1)

	n, err := h.PruneExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			h.logger.Error("retention cleanup failed", "error", err)
		}
		return
	}
	if n > 0 {
		h.logger.Info("retention cleanup", "deleted", n, "retention", h.cfg.Retention)
	}
}

// PruneExpired deletes durable records older than the retention window and
// returns how many were removed. It is a no-op when retention is disabled.
func (h *HybridStore) PruneExpired(ctx context.Context) (int64, error) {
	if h.cfg.Retention <= 0 {
		return 0, nil
	}
	if err := h.Initialize(ctx); err != nil {
		return 0, err
	}
	cutoff := h.clock.Now().Add(-h.cfg.Retention)
	n, err := h.db.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune expired records: %w", err)
	}
	metrics.RecordsExpired.Add(float64(n))
	return n, nil
}
