package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/roach88/capstore/internal/capture"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation failed or record not found
	ExitCommandError = 2 // Command error (bad flags, config or database unavailable)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; defaults to Writer
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success outputs data in the configured format. In text mode data is
// printed with fmt; use the Records helpers for record listings.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return f.encodeJSON(CLIResponse{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return f.encodeJSON(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Records outputs a record listing: one summary line per record in text
// mode, or the full records in JSON mode.
func (f *OutputFormatter) Records(records []capture.Record) error {
	if f.Format == "json" {
		return f.encodeJSON(CLIResponse{Status: "ok", Data: records})
	}
	if len(records) == 0 {
		_, err := fmt.Fprintln(f.Writer, "No records.")
		return err
	}
	for _, r := range records {
		if _, err := fmt.Fprintln(f.Writer, summaryLine(r)); err != nil {
			return err
		}
	}
	return nil
}

// Record outputs a single record in detail.
func (f *OutputFormatter) Record(r capture.Record) error {
	if f.Format == "json" {
		return f.encodeJSON(CLIResponse{Status: "ok", Data: r})
	}
	_, err := io.WriteString(f.Writer, detailText(r))
	return err
}

// VerboseLog outputs a message only if verbose mode is enabled.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

func (f *OutputFormatter) encodeJSON(v any) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// statusText is the status column of a summary line.
func statusText(r capture.Record) string {
	switch {
	case r.IsFailed():
		return "ERR"
	case r.IsPending():
		return "..."
	default:
		return fmt.Sprintf("%d", r.StatusCode)
	}
}

func summaryLine(r capture.Record) string {
	return fmt.Sprintf("%s  %-7s %3s %8s  %s  [%s]",
		r.Timestamp.UTC().Format(time.RFC3339Nano),
		r.Method,
		statusText(r),
		r.Duration.Round(time.Millisecond),
		r.URL,
		r.ID)
}

func detailText(r capture.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ID:        %s\n", r.ID)
	fmt.Fprintf(&b, "Time:      %s\n", r.Timestamp.UTC().Format(time.RFC3339Nano))
	fmt.Fprintf(&b, "Duration:  %s\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "Request:   %s %s\n", r.Method, r.URL)
	switch {
	case r.IsFailed():
		fmt.Fprintf(&b, "Status:    failed: %s\n", r.ErrorMessage)
	case r.IsPending():
		fmt.Fprintf(&b, "Status:    pending\n")
	default:
		fmt.Fprintf(&b, "Status:    %d %s\n", r.StatusCode, r.ReasonPhrase)
	}

	writeSection(&b, "Request headers", r.RequestHeaders)
	writeBody(&b, "Request body", r.RequestBody, r.RequestBodyTruncated, r.RequestBodySize)
	writeSection(&b, "Response headers", r.ResponseHeaders)
	writeBody(&b, "Response body", r.ResponseBody, r.ResponseBodyTruncated, r.ResponseBodySize)
	return b.String()
}

func writeSection(b *strings.Builder, title string, h capture.Headers) {
	if len(h) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, name := range slices.Sorted(maps.Keys(h)) {
		for _, v := range h[name] {
			fmt.Fprintf(b, "  %s: %s\n", name, v)
		}
	}
}

func writeBody(b *strings.Builder, title string, body *string, truncated bool, size int64) {
	if body == nil {
		return
	}
	fmt.Fprintf(b, "\n%s", title)
	if truncated {
		fmt.Fprintf(b, " (truncated, %d bytes total)", size)
	}
	fmt.Fprintf(b, ":\n%s\n", *body)
}
