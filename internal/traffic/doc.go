// Package traffic exposes the capture-record store to producers (the
// capture pipeline) and consumers (viewers, the CLI).
//
// Two variants satisfy Store:
//
//   - MemoryStore keeps only the bounded in-memory cache.
//   - HybridStore serves reads from the same cache and persists every
//     record to the SQLite layer in internal/store through a single
//     background writer, with periodic age-based cleanup and a max-count
//     trim.
//
// Add never blocks on I/O and never fails. Listeners registered with
// OnAdded/OnCleared are invoked synchronously on the caller's goroutine,
// without any store lock held.
package traffic
