package capture

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

// Filter is a conjunctive search condition over records.
// The zero Filter matches everything.
type Filter struct {
	// Search is a case-insensitive substring matched against the URL, both
	// bodies, and every header name and value.
	Search string `json:"search,omitempty"`

	// Methods accepts any of the listed HTTP methods (case-insensitive).
	// Empty accepts all methods.
	Methods []string `json:"methods,omitempty"`

	// StatusGroups accepts records whose StatusGroup is listed:
	// 2, 3, 4, 5 for completed records, 0 for pending or failed ones.
	// Empty accepts all records.
	StatusGroups []int `json:"status_groups,omitempty"`
}

// IsEmpty reports whether f matches every record.
func (f Filter) IsEmpty() bool {
	return f.Search == "" && len(f.Methods) == 0 && len(f.StatusGroups) == 0
}

// Match reports whether r satisfies all criteria of f.
func (f Filter) Match(r Record) bool {
	return f.matchMethod(r) && f.matchStatus(r) && newMatcher(f.Search).match(r)
}

func (f Filter) matchMethod(r Record) bool {
	if len(f.Methods) == 0 {
		return true
	}
	for _, m := range f.Methods {
		if strings.EqualFold(m, r.Method) {
			return true
		}
	}
	return false
}

func (f Filter) matchStatus(r Record) bool {
	if len(f.StatusGroups) == 0 {
		return true
	}
	return slices.Contains(f.StatusGroups, r.StatusGroup())
}

// FilterRecords returns the records matching f, preserving input order.
// It always returns a non-nil slice.
func FilterRecords(records []Record, f Filter) []Record {
	out := make([]Record, 0, len(records))
	if f.IsEmpty() {
		return append(out, records...)
	}
	m := newMatcher(f.Search)
	for _, r := range records {
		if f.matchMethod(r) && f.matchStatus(r) && m.match(r) {
			out = append(out, r)
		}
	}
	return out
}

// matcher performs Unicode case-folded substring matching.
// cases.Caser is stateful, so each matcher owns its own.
type matcher struct {
	fold   cases.Caser
	needle string
}

func newMatcher(search string) *matcher {
	if search == "" {
		return nil
	}
	fold := cases.Fold()
	return &matcher{fold: fold, needle: fold.String(search)}
}

func (m *matcher) contains(s string) bool {
	if s == "" {
		return false
	}
	return strings.Contains(m.fold.String(s), m.needle)
}

func (m *matcher) match(r Record) bool {
	if m == nil {
		return true
	}
	if m.contains(r.URL) {
		return true
	}
	if r.RequestBody != nil && m.contains(*r.RequestBody) {
		return true
	}
	if r.ResponseBody != nil && m.contains(*r.ResponseBody) {
		return true
	}
	return m.matchHeaders(r.RequestHeaders) || m.matchHeaders(r.ResponseHeaders)
}

func (m *matcher) matchHeaders(h Headers) bool {
	for name, values := range h {
		if m.contains(name) {
			return true
		}
		for _, v := range values {
			if m.contains(v) {
				return true
			}
		}
	}
	return false
}

// ContainsFold reports whether substr occurs in s under Unicode case folding.
// An empty substr matches everything.
func ContainsFold(s, substr string) bool {
	if substr == "" {
		return true
	}
	return newMatcher(substr).contains(s)
}
