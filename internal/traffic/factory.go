package traffic

import (
	"github.com/roach88/capstore/internal/config"
	"github.com/roach88/capstore/internal/store"
)

var _ Durable = (*store.Store)(nil)

// New builds the store variant selected by cfg: a HybridStore over the
// SQLite file at cfg.DatabaseFile() when persistence is enabled, otherwise a
// MemoryStore.
func New(cfg *config.Config, opts ...Option) (Store, error) {
	if !cfg.Persistence.Enabled {
		return NewMemoryStore(cfg.MemoryOnlyCacheSize, opts...)
	}
	return NewHybridStore(store.New(cfg.DatabaseFile()), HybridConfig{
		MemoryCacheSize: cfg.Persistence.MemoryCacheSize,
		MaxPersisted:    cfg.Persistence.MaxPersistedRecords,
		Retention:       cfg.Retention(),
		CleanupInterval: cfg.Persistence.CleanupInterval,
		Name:            cfg.DatabaseFile(),
	}, opts...)
}
