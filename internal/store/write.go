package store

import (
	"context"
	"fmt"

	"github.com/roach88/capstore/internal/capture"
)

const insertSQL = `INSERT INTO records (` + recordColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// upsertSQL replaces every column of an existing row but keeps its rowid.
const upsertSQL = insertSQL + `
	ON CONFLICT(id) DO UPDATE SET
		timestamp = excluded.timestamp,
		duration_ms = excluded.duration_ms,
		method = excluded.method,
		url = excluded.url,
		request_headers = excluded.request_headers,
		response_headers = excluded.response_headers,
		request_body = excluded.request_body,
		response_body = excluded.response_body,
		request_body_truncated = excluded.request_body_truncated,
		response_body_truncated = excluded.response_body_truncated,
		request_body_size = excluded.request_body_size,
		response_body_size = excluded.response_body_size,
		status_code = excluded.status_code,
		reason_phrase = excluded.reason_phrase,
		is_complete = excluded.is_complete,
		error_message = excluded.error_message`

// Insert persists a snapshot of r. A duplicate id is an error.
func (s *Store) Insert(ctx context.Context, r capture.Record) error {
	if err := s.exec(ctx, insertSQL, r); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// Upsert persists a snapshot of r, replacing any stored record with the
// same id.
func (s *Store) Upsert(ctx context.Context, r capture.Record) error {
	if err := s.exec(ctx, upsertSQL, r); err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

func (s *Store) exec(ctx context.Context, query string, r capture.Record) error {
	if r.ID == "" {
		return fmt.Errorf("record id is empty")
	}
	db, err := s.conn()
	if err != nil {
		return err
	}
	args, err := recordArgs(r)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, query, args...)
	return err
}
