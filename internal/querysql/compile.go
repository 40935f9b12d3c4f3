// Package querysql compiles capture filters to parameterized SQLite queries
// over the records table.
//
// All values are bound as parameters, never interpolated, and every query
// carries a deterministic ORDER BY: newest timestamp first, id as tiebreaker.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/capstore/internal/capture"
)

// OrderNewestFirst is the ORDER BY clause shared by every records query.
const OrderNewestFirst = "ORDER BY timestamp DESC, id COLLATE BINARY DESC"

// searchColumns are plain text columns matched by the filter's search text.
var searchColumns = []string{
	"url",
	"request_body",
	"response_body",
}

// headerColumns hold JSON objects mapping a header name to its values.
// They are matched per name and per value, never on the JSON text, so
// quoting and punctuation in the encoding are not searchable.
var headerColumns = []string{
	"request_headers",
	"response_headers",
}

// headerMatch matches col when any header name or value is LIKE the two
// bound patterns. CASE keeps json_each away from unparsable text.
func headerMatch(col string) string {
	return "(CASE WHEN json_valid(" + col + ") THEN EXISTS (" +
		"SELECT 1 FROM json_each(" + col + ") AS h " +
		`WHERE h.key LIKE ? ESCAPE '\' ` +
		"OR EXISTS (SELECT 1 FROM json_each(h.value) AS v " +
		`WHERE v.type = 'text' AND v.value LIKE ? ESCAPE '\')` +
		") ELSE 0 END)"
}

// Query describes a filtered, paged read of the records table.
type Query struct {
	Filter capture.Filter
	Limit  int // <= 0 means unlimited
	Offset int
}

// SQLCompiler compiles Query values to SQL.
type SQLCompiler struct {
	// Table is the source table name.
	Table string
	// Columns is the SELECT list.
	Columns string
}

// NewSQLCompiler creates a compiler selecting columns from table.
func NewSQLCompiler(table, columns string) *SQLCompiler {
	return &SQLCompiler{Table: table, Columns: columns}
}

// Compile converts q into a SELECT statement and its parameters.
func (c *SQLCompiler) Compile(q Query) (string, []any, error) {
	where, params, err := Where(q.Filter)
	if err != nil {
		return "", nil, fmt.Errorf("compile filter: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", c.Columns, c.Table)
	if where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}
	b.WriteString(" ")
	b.WriteString(OrderNewestFirst)

	limitSQL, limitParams := LimitOffset(q.Limit, q.Offset)
	b.WriteString(limitSQL)
	params = append(params, limitParams...)

	return b.String(), params, nil
}

// Where compiles f to a WHERE clause body (without the keyword).
// An empty filter compiles to "".
func Where(f capture.Filter) (string, []any, error) {
	var clauses []string
	var params []any

	if f.Search != "" {
		pattern := "%" + EscapeLike(f.Search) + "%"
		parts := make([]string, 0, len(searchColumns)+len(headerColumns))
		for _, col := range searchColumns {
			parts = append(parts, col+` LIKE ? ESCAPE '\'`)
			params = append(params, pattern)
		}
		for _, col := range headerColumns {
			parts = append(parts, headerMatch(col))
			params = append(params, pattern, pattern)
		}
		clauses = append(clauses, "("+strings.Join(parts, " OR ")+")")
	}

	if len(f.Methods) > 0 {
		clauses = append(clauses, "UPPER(method) IN ("+placeholders(len(f.Methods))+")")
		for _, m := range f.Methods {
			params = append(params, strings.ToUpper(m))
		}
	}

	if len(f.StatusGroups) > 0 {
		for _, g := range f.StatusGroups {
			if g < 0 || g > 9 {
				return "", nil, fmt.Errorf("invalid status group %d", g)
			}
			params = append(params, g)
		}
		clauses = append(clauses,
			"(CASE WHEN is_complete = 0 THEN 0 ELSE status_code / 100 END) IN ("+placeholders(len(f.StatusGroups))+")")
	}

	return strings.Join(clauses, " AND "), params, nil
}

// LimitOffset returns the LIMIT/OFFSET suffix for a query.
// SQLite requires a LIMIT before OFFSET, so -1 stands in for unlimited.
func LimitOffset(limit, offset int) (string, []any) {
	switch {
	case limit <= 0 && offset <= 0:
		return "", nil
	case offset <= 0:
		return " LIMIT ?", []any{limit}
	case limit <= 0:
		return " LIMIT -1 OFFSET ?", []any{offset}
	default:
		return " LIMIT ? OFFSET ?", []any{limit, offset}
	}
}

// EscapeLike escapes LIKE wildcards in s using backslash as the escape
// character.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
