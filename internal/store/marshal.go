package store

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/capstore/internal/capture"
)

// recordColumns is the column list shared by every SELECT and INSERT.
const recordColumns = `id, timestamp, duration_ms, method, url,
	request_headers, response_headers, request_body, response_body,
	request_body_truncated, response_body_truncated, request_body_size, response_body_size,
	status_code, reason_phrase, is_complete, error_message`

// marshalHeaders converts a header multimap to JSON TEXT for storage.
// HTML escaping is disabled so header values are stored as sent.
func marshalHeaders(h capture.Headers) (string, error) {
	if len(h) == 0 {
		return "{}", nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(map[string][]string(h)); err != nil {
		return "", fmt.Errorf("marshal headers: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalHeaders parses JSON TEXT to a header multimap.
// Absent or unparsable input decodes to an empty map.
func unmarshalHeaders(data sql.NullString) capture.Headers {
	h := capture.Headers{}
	if !data.Valid || data.String == "" || data.String == "{}" {
		return h
	}
	var m map[string][]string
	if err := json.Unmarshal([]byte(data.String), &m); err != nil {
		return h
	}
	for name, values := range m {
		h[name] = values
	}
	return h
}

// recordArgs returns the INSERT parameters for r, in recordColumns order.
func recordArgs(r capture.Record) ([]any, error) {
	reqHeaders, err := marshalHeaders(r.RequestHeaders)
	if err != nil {
		return nil, fmt.Errorf("request headers: %w", err)
	}
	respHeaders, err := marshalHeaders(r.ResponseHeaders)
	if err != nil {
		return nil, fmt.Errorf("response headers: %w", err)
	}

	return []any{
		r.ID,
		r.Timestamp.UnixNano(),
		r.Duration.Milliseconds(),
		r.Method,
		r.URL,
		reqHeaders,
		respHeaders,
		nullableText(r.RequestBody),
		nullableText(r.ResponseBody),
		r.RequestBodyTruncated,
		r.ResponseBodyTruncated,
		r.RequestBodySize,
		r.ResponseBodySize,
		r.StatusCode,
		r.ReasonPhrase,
		r.IsComplete,
		r.ErrorMessage,
	}, nil
}

func nullableText(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanRecord scans a row selected with recordColumns.
func scanRecord(row scanner) (capture.Record, error) {
	var (
		r                      capture.Record
		ts, durationMS         int64
		reqHeaders, respHeader sql.NullString
		reqBody, respBody      sql.NullString
		reqTrunc, respTrunc    int64
		complete               int64
	)

	if err := row.Scan(
		&r.ID, &ts, &durationMS, &r.Method, &r.URL,
		&reqHeaders, &respHeader, &reqBody, &respBody,
		&reqTrunc, &respTrunc, &r.RequestBodySize, &r.ResponseBodySize,
		&r.StatusCode, &r.ReasonPhrase, &complete, &r.ErrorMessage,
	); err != nil {
		return capture.Record{}, err
	}

	r.Timestamp = time.Unix(0, ts).UTC()
	r.Duration = time.Duration(durationMS) * time.Millisecond
	r.RequestHeaders = unmarshalHeaders(reqHeaders)
	r.ResponseHeaders = unmarshalHeaders(respHeader)
	if reqBody.Valid {
		r.RequestBody = capture.Text(reqBody.String)
	}
	if respBody.Valid {
		r.ResponseBody = capture.Text(respBody.String)
	}
	r.RequestBodyTruncated = reqTrunc != 0
	r.ResponseBodyTruncated = respTrunc != 0
	r.IsComplete = complete != 0

	return r, nil
}
