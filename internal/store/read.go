package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/capstore/internal/capture"
	"github.com/roach88/capstore/internal/querysql"
)

var compiler = querysql.NewSQLCompiler("records", recordColumns)

// GetByID retrieves a single record by id.
// A missing record is reported as ok=false with a nil error.
func (s *Store) GetByID(ctx context.Context, id string) (capture.Record, bool, error) {
	db, err := s.conn()
	if err != nil {
		return capture.Record{}, false, fmt.Errorf("get record: %w", err)
	}

	row := db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return capture.Record{}, false, nil
	}
	if err != nil {
		return capture.Record{}, false, fmt.Errorf("get record: %w", err)
	}
	return r, true, nil
}

// GetAll returns up to limit records, newest first. A limit of 0 returns
// every record.
func (s *Store) GetAll(ctx context.Context, limit int) ([]capture.Record, error) {
	return s.Page(ctx, 0, limit)
}

// Page returns up to limit records after skipping offset, newest first.
func (s *Store) Page(ctx context.Context, offset, limit int) ([]capture.Record, error) {
	return s.Query(ctx, querysql.Query{Limit: limit, Offset: offset})
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	db, err := s.conn()
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// SearchByURLSubstring returns records whose URL contains text
// (ASCII case-insensitive), newest first.
func (s *Store) SearchByURLSubstring(ctx context.Context, text string, limit int) ([]capture.Record, error) {
	where := `url LIKE ? ESCAPE '\'`
	return s.selectWhere(ctx, "search by url", where, limit, "%"+querysql.EscapeLike(text)+"%")
}

// FilterByMethod returns records with the given method (case-insensitive),
// newest first.
func (s *Store) FilterByMethod(ctx context.Context, method string, limit int) ([]capture.Record, error) {
	return s.selectWhere(ctx, "filter by method", `method = ? COLLATE NOCASE`, limit, strings.ToUpper(method))
}

// FilterByStatusRange returns records whose status code lies in
// [minStatus, maxStatus], newest first.
func (s *Store) FilterByStatusRange(ctx context.Context, minStatus, maxStatus, limit int) ([]capture.Record, error) {
	return s.selectWhere(ctx, "filter by status", `status_code BETWEEN ? AND ?`, limit, minStatus, maxStatus)
}

// Search returns records matching f, newest first.
func (s *Store) Search(ctx context.Context, f capture.Filter, limit int) ([]capture.Record, error) {
	return s.Query(ctx, querysql.Query{Filter: f, Limit: limit})
}

// Query runs a compiled filter query.
func (s *Store) Query(ctx context.Context, q querysql.Query) ([]capture.Record, error) {
	query, params, err := compiler.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	return s.queryRecords(ctx, "query records", query, params...)
}

func (s *Store) selectWhere(ctx context.Context, op, where string, limit int, params ...any) ([]capture.Record, error) {
	limitSQL, limitParams := querysql.LimitOffset(limit, 0)
	query := `SELECT ` + recordColumns + ` FROM records WHERE ` + where + ` ` + querysql.OrderNewestFirst + limitSQL
	return s.queryRecords(ctx, op, query, append(params, limitParams...)...)
}

func (s *Store) queryRecords(ctx context.Context, op, query string, params ...any) ([]capture.Record, error) {
	db, err := s.conn()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	records := []capture.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}

	return records, nil
}
