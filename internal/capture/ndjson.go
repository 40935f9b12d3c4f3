package capture

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// maxNDJSONLine bounds a single encoded record; bodies can be large.
const maxNDJSONLine = 16 << 20

// WriteNDJSON writes records to w, one JSON object per line.
func WriteNDJSON(w io.Writer, records []Record) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode record %s: %w", r.ID, err)
		}
	}
	return nil
}

// ReadNDJSON decodes one record per non-blank line of r and passes each to
// fn. Records without an id get a fresh one, and methods are upper-cased.
// It stops at the first malformed line or fn error.
func ReadNDJSON(r io.Reader, fn func(Record) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxNDJSONLine)

	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return fmt.Errorf("decode line %d: %w", line, err)
		}
		if rec.ID == "" {
			rec.ID = NewID()
		}
		rec.Method = strings.ToUpper(rec.Method)

		if err := fn(rec); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read records: %w", err)
	}
	return nil
}
