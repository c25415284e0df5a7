package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Failure categories. Concrete errors wrap one of these so callers can branch
// with errors.Is regardless of which component produced them.
var (
	ErrConnectivity  = errors.New("connectivity failure")
	ErrAuth          = errors.New("auth failure")
	ErrValidation    = errors.New("validation failure")
	ErrNotFound      = errors.New("record not found")
	ErrLoad          = errors.New("load failure")
	ErrPartialCommit = errors.New("partial commit failure")
	ErrQuotaExceeded = errors.New("quota exceeded")
	ErrTimeout       = errors.New("timeout")

	// ErrStaleRow means a row addressed by a staged update or delete was
	// moved, rewritten or removed in the sheet after the last load.
	ErrStaleRow = errors.New("row changed remotely")

	// ErrNotLoaded is returned by store operations that need a loaded collection.
	ErrNotLoaded = errors.New("collection not loaded")
)

// Violations maps a record field name (e.g. "sale_price") to what is wrong with it.
// An empty map means the record is valid.
type Violations map[string]string

// Fields returns the violated field names in sorted order.
func (v Violations) Fields() []string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// merge copies entries from other that are not already present.
func (v Violations) merge(other Violations) {
	for f, msg := range other {
		if _, ok := v[f]; !ok {
			v[f] = msg
		}
	}
}

// ValidationError reports field-level violations for one record.
type ValidationError struct {
	RecordID   string // record_id or draft ref; empty for a new draft
	Violations Violations
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, f := range e.Violations.Fields() {
		parts = append(parts, fmt.Sprintf("%s %s", f, e.Violations[f]))
	}
	if e.RecordID != "" {
		return fmt.Sprintf("invalid record %s: %s", e.RecordID, strings.Join(parts, "; "))
	}
	return "invalid record: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// LoadError reports why a load (or a commit's remote verification) could not
// produce a collection. It matches both ErrLoad and the underlying cause.
type LoadError struct {
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return "load failed: " + e.Reason
	}
	return fmt.Sprintf("load failed: %s: %v", e.Reason, e.Err)
}

func (e *LoadError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrLoad}
	}
	return []error{ErrLoad, e.Err}
}

// PartialCommitError lists the staged operations a commit could not apply.
// Operations that succeeded before or after them stay applied.
type PartialCommitError struct {
	Failed []Outcome
}

func (e *PartialCommitError) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for _, o := range e.Failed {
		parts = append(parts, fmt.Sprintf("%s %s: %v", o.Op, o.Key(), o.Err))
	}
	return fmt.Sprintf("commit: %d operation(s) failed: %s", len(e.Failed), strings.Join(parts, "; "))
}

func (e *PartialCommitError) Unwrap() error { return ErrPartialCommit }

func notFound(id string) error {
	return fmt.Errorf("%w: %q", ErrNotFound, id)
}
