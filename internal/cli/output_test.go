package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/capstore/internal/capture"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Success(CountResult{Total: 3, Database: "captures.db"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"total": float64(3), "database": "captures.db"}, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Error("E404", "record not found: x", map[string]string{"id": "x"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E404", resp.Error.Code)
	assert.Equal(t, "record not found: x", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success(DeleteResult{Deleted: 4, Reason: "clear"}))
	assert.Equal(t, "Deleted 4 records (clear)\n", buf.String())
}

func TestOutputFormatter_TextError(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		wantDetails bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			require.NoError(t, formatter.Error("E404", "record not found: x", "id=x"))
			assert.Contains(t, buf.String(), "Error [E404]: record not found: x")
			if tt.wantDetails {
				assert.Contains(t, buf.String(), "Details: id=x")
			} else {
				assert.NotContains(t, buf.String(), "Details:")
			}
		})
	}
}

func TestOutputFormatter_VerboseLogUsesErrWriter(t *testing.T) {
	out, diag := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag, Verbose: true}

	formatter.VerboseLog("exported %d records", 3)
	assert.Empty(t, out.String(), "diagnostics must not corrupt JSON output")
	assert.Equal(t, "exported 3 records\n", diag.String())

	formatter.Verbose = false
	formatter.VerboseLog("hidden")
	assert.Equal(t, "exported 3 records\n", diag.String())
}

func TestOutputFormatter_EmptyRecords(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}
	require.NoError(t, formatter.Records(nil))
	assert.Equal(t, "No records.\n", buf.String())

	buf.Reset()
	formatter.Format = "json"
	require.NoError(t, formatter.Records([]capture.Record{}))
	assert.JSONEq(t, `{"status":"ok","data":[]}`, buf.String())
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "404", statusText(capture.Record{StatusCode: 404, IsComplete: true}))
	assert.Equal(t, "ERR", statusText(capture.Record{ErrorMessage: "timeout"}))
	assert.Equal(t, "...", statusText(capture.Record{}))
}

func TestSummaryLine(t *testing.T) {
	r := capture.Record{
		ID:         "abc",
		Timestamp:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Duration:   1500 * time.Microsecond,
		Method:     "PATCH",
		URL:        "https://example.com/x",
		StatusCode: 204,
		IsComplete: true,
	}
	assert.Equal(t, "2026-03-01T12:00:00Z  PATCH   204      2ms  https://example.com/x  [abc]", summaryLine(r))
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))
	assert.Equal(t, ExitFailure, GetExitCode(WrapExitError(ExitFailure, "failed", errors.New("disk"))))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}

func TestExitError_Unwrap(t *testing.T) {
	base := errors.New("disk full")
	err := WrapExitError(ExitFailure, "failed to trim records", base)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "failed to trim records: disk full", err.Error())
}
