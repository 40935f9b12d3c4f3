package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/capstore/internal/capture"
)

var testBase = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// createTestStore creates an initialized store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRecord creates a completed GET record at testBase+offset.
func createTestRecord(id string, offset time.Duration) capture.Record {
	return capture.Record{
		ID:         id,
		Timestamp:  testBase.Add(offset),
		Duration:   42 * time.Millisecond,
		Method:     "GET",
		URL:        "https://example.com/" + id,
		StatusCode: 200,
		IsComplete: true,
	}
}

// seedRecords inserts n records r-0..r-(n-1), one second apart.
func seedRecords(t *testing.T, s *Store, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		r := createTestRecord(fmt.Sprintf("r-%d", i), time.Duration(i)*time.Second)
		if err := s.Insert(context.Background(), r); err != nil {
			t.Fatalf("Insert(%s) failed: %v", r.ID, err)
		}
	}
}

func recordIDs(records []capture.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}
