// Package store provides SQLite-backed durable storage for captured records.
//
// The store owns a single table, records, keyed by the record id. Header
// multimaps are stored as JSON text; an absent or unparsable header column
// decodes to an empty map rather than failing the read.
//
// # Ordering
//
// Every multi-row read is newest first:
// ORDER BY timestamp DESC, id COLLATE BINARY DESC.
// Timestamps are stored as unix nanoseconds, so ordering is exact.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - txlock=immediate: writers take the write lock at BEGIN
//
// The adapter never retries. Callers decide whether an error is swallowed
// or surfaced.
package store
