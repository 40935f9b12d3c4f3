package store

import (
	"context"
	"fmt"
	"time"
)

// DeleteByID deletes one record and reports whether it existed.
func (s *Store) DeleteByID(ctx context.Context, id string) (bool, error) {
	n, err := s.delete(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete record: %w", err)
	}
	return n > 0, nil
}

// DeleteAll deletes every record and returns how many were removed.
func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	n, err := s.delete(ctx, `DELETE FROM records`)
	if err != nil {
		return 0, fmt.Errorf("delete all records: %w", err)
	}
	return n, nil
}

// DeleteOlderThan deletes records timestamped strictly before cutoff.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.delete(ctx, `DELETE FROM records WHERE timestamp < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("delete records older than %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return n, nil
}

// TrimToMostRecent deletes every record not among the n most recent.
// It is a no-op returning 0 when the table holds n records or fewer.
func (s *Store) TrimToMostRecent(ctx context.Context, n int) (int64, error) {
	if n < 0 {
		return 0, fmt.Errorf("trim records: negative keep count %d", n)
	}
	db, err := s.conn()
	if err != nil {
		return 0, fmt.Errorf("trim records: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("trim records: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var total int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&total); err != nil {
		return 0, fmt.Errorf("trim records: count: %w", err)
	}
	if total <= n {
		return 0, nil
	}

	result, err := tx.ExecContext(ctx, `
		DELETE FROM records
		WHERE id NOT IN (
			SELECT id FROM records
			ORDER BY timestamp DESC, id COLLATE BINARY DESC
			LIMIT ?
		)
	`, n)
	if err != nil {
		return 0, fmt.Errorf("trim records: delete: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("trim records: rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("trim records: commit: %w", err)
	}
	return deleted, nil
}

func (s *Store) delete(ctx context.Context, query string, args ...any) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
