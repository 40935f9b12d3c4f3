package capture

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Headers is a header multimap: name to ordered values.
// Name order is irrelevant; value order is preserved.
type Headers map[string][]string

// Clone returns a deep copy of h. A nil map clones to nil.
func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	out := make(Headers, len(h))
	for name, values := range h {
		if values == nil {
			out[name] = nil
			continue
		}
		cp := make([]string, len(values))
		copy(cp, values)
		out[name] = cp
	}
	return out
}

// Record is one captured HTTP transaction.
type Record struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`

	Method string `json:"method"`
	URL    string `json:"url"`

	RequestHeaders  Headers `json:"request_headers,omitempty"`
	ResponseHeaders Headers `json:"response_headers,omitempty"`

	RequestBody          *string `json:"request_body,omitempty"`
	RequestBodyTruncated bool    `json:"request_body_truncated,omitempty"`
	RequestBodySize      int64   `json:"request_body_size,omitempty"`

	ResponseBody          *string `json:"response_body,omitempty"`
	ResponseBodyTruncated bool    `json:"response_body_truncated,omitempty"`
	ResponseBodySize      int64   `json:"response_body_size,omitempty"`

	StatusCode   int    `json:"status_code"`
	ReasonPhrase string `json:"reason_phrase,omitempty"`
	IsComplete   bool   `json:"is_complete"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// NewID returns a new UUIDv7 record identifier.
// UUIDv7 embeds the creation time, so identifiers sort by creation order.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewRecord creates a pending record stamped with the current UTC time.
func NewRecord(method, url string) Record {
	return Record{
		ID:        NewID(),
		Timestamp: time.Now().UTC(),
		Method:    strings.ToUpper(method),
		URL:       url,
	}
}

// IsFailed reports whether the transaction ended without a response.
func (r Record) IsFailed() bool {
	return !r.IsComplete && r.ErrorMessage != ""
}

// IsPending reports whether the transaction has neither completed nor failed.
func (r Record) IsPending() bool {
	return !r.IsComplete && r.ErrorMessage == ""
}

// StatusGroup returns the first digit of the status code for completed
// records, and 0 for pending or failed ones.
func (r Record) StatusGroup() int {
	if !r.IsComplete {
		return 0
	}
	return r.StatusCode / 100
}

// Clone returns a deep copy of r. Body pointers and header slices are not
// shared with r.
func (r Record) Clone() Record {
	out := r
	out.RequestHeaders = r.RequestHeaders.Clone()
	out.ResponseHeaders = r.ResponseHeaders.Clone()
	out.RequestBody = cloneString(r.RequestBody)
	out.ResponseBody = cloneString(r.ResponseBody)
	return out
}

// Text returns a pointer to s, for populating optional bodies.
func Text(s string) *string {
	return &s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
