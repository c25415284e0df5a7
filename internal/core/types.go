package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Status is a product's publication state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// Statuses lists the known statuses in display order.
var Statuses = []Status{StatusDraft, StatusPublished, StatusArchived}

// ParseStatus normalizes a status cell. Known values are matched
// case-insensitively; an empty cell means draft. Unknown values are kept
// verbatim so they survive a round trip and fail validation.
func ParseStatus(s string) Status {
	s = strings.TrimSpace(s)
	if s == "" {
		return StatusDraft
	}
	lower := Status(strings.ToLower(s))
	if lower.IsKnown() {
		return lower
	}
	return Status(s)
}

// IsKnown reports whether s is one of the defined statuses.
func (s Status) IsKnown() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// Label is the value written to the Status column ("Draft", "Published", ...).
func (s Status) Label() string {
	if !s.IsKnown() {
		return string(s)
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// Record is one product row plus its position in the sheet.
type Record struct {
	RecordID         string              `field:"record_id" validate:"omitempty,recordid"`
	SheetRowIndex    int                 `field:"-" validate:"-"`
	Name             string              `field:"name" validate:"required,max=200"`
	Description      string              `field:"description" validate:"max=10000"`
	ShortDescription string              `field:"short_description" validate:"max=1000"`
	RegularPrice     decimal.NullDecimal `field:"regular_price" validate:"-"`
	SalePrice        decimal.NullDecimal `field:"sale_price" validate:"-"`
	URLSlug          string              `field:"url_slug" validate:"omitempty,max=200,slug"`
	Categories       []string            `field:"categories" validate:"dive,required,nocomma"`
	Status           Status              `field:"status" validate:"status"`
	SourceID         string              `field:"source_id" validate:"max=100"`

	// DraftRef keys a pending record until commit assigns its RecordID.
	DraftRef string `field:"-" validate:"-"`
}

// IsPending reports whether the record has not been written to the sheet yet.
func (r Record) IsPending() bool { return r.RecordID == "" }

// Key is the identifier callers use to address the record: its RecordID once
// persisted, otherwise its DraftRef.
func (r Record) Key() string {
	if r.RecordID != "" {
		return r.RecordID
	}
	return r.DraftRef
}

// Changes is a partial update. Nil fields are left as they are.
type Changes struct {
	Name             *string
	Description      *string
	ShortDescription *string
	RegularPrice     *decimal.NullDecimal
	SalePrice        *decimal.NullDecimal
	URLSlug          *string
	Categories       *[]string
	Status           *Status
	SourceID         *string
}

// IsEmpty reports whether the changes touch no field.
func (c Changes) IsEmpty() bool {
	return len(c.Fields()) == 0
}

// Fields returns the record field names the changes touch.
func (c Changes) Fields() []string {
	var f []string
	if c.Name != nil {
		f = append(f, "name")
	}
	if c.Description != nil {
		f = append(f, "description")
	}
	if c.ShortDescription != nil {
		f = append(f, "short_description")
	}
	if c.RegularPrice != nil {
		f = append(f, "regular_price")
	}
	if c.SalePrice != nil {
		f = append(f, "sale_price")
	}
	if c.URLSlug != nil {
		f = append(f, "url_slug")
	}
	if c.Categories != nil {
		f = append(f, "categories")
	}
	if c.Status != nil {
		f = append(f, "status")
	}
	if c.SourceID != nil {
		f = append(f, "source_id")
	}
	return f
}

// Apply returns r with the changes merged in. r is not modified.
func (c Changes) Apply(r Record) Record {
	out := r.Clone()
	if c.Name != nil {
		out.Name = strings.TrimSpace(*c.Name)
	}
	if c.Description != nil {
		out.Description = strings.TrimSpace(*c.Description)
	}
	if c.ShortDescription != nil {
		out.ShortDescription = strings.TrimSpace(*c.ShortDescription)
	}
	if c.RegularPrice != nil {
		out.RegularPrice = *c.RegularPrice
	}
	if c.SalePrice != nil {
		out.SalePrice = *c.SalePrice
	}
	if c.URLSlug != nil {
		out.URLSlug = strings.TrimSpace(*c.URLSlug)
	}
	if c.Categories != nil {
		out.Categories = cleanCategories(*c.Categories)
	}
	if c.Status != nil {
		out.Status = *c.Status
	}
	if c.SourceID != nil {
		out.SourceID = strings.TrimSpace(*c.SourceID)
	}
	return out
}

// SheetRef addresses one worksheet: a spreadsheet URL (or bare id) plus the
// zero-based worksheet index within it.
type SheetRef struct {
	URL       string
	Worksheet int
}

// Key is a compact label for logs and audit entries.
func (r SheetRef) Key() string {
	return fmt.Sprintf("%s#%d", r.URL, r.Worksheet)
}

// AppendResult reports where an appended row landed. RecordID is set only by
// backends that assign identity themselves.
type AppendResult struct {
	RowIndex int
	RecordID string
}

// SheetClient reads and writes rows of a worksheet. Row indexes are
// zero-based data-row positions; the header row is not addressable.
// FetchRows returns the header row first.
type SheetClient interface {
	FetchRows(ctx context.Context, ref SheetRef) ([][]string, error)
	AppendRow(ctx context.Context, ref SheetRef, values []string) (AppendResult, error)
	UpdateRow(ctx context.Context, ref SheetRef, index int, values []string) error
	DeleteRow(ctx context.Context, ref SheetRef, index int) error
}

// OpKind names a remote operation issued by Commit.
type OpKind string

const (
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
	OpAppend OpKind = "append"
)

// Outcome is the result of one remote operation during Commit.
type Outcome struct {
	Op       OpKind
	RecordID string // assigned id for appends; empty if the append failed
	DraftRef string // set for appends
	RowIndex int    // row the operation addressed or produced; -1 if unknown
	Err      error
	Record   Record // the record as sent
}

// Key identifies the record the outcome belongs to.
func (o Outcome) Key() string {
	if o.RecordID != "" {
		return o.RecordID
	}
	return o.DraftRef
}

// OK reports whether the operation succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// CommitResult reports every operation a commit attempted.
type CommitResult struct {
	Outcomes []Outcome
	Reloaded bool
}

// Failed returns the outcomes whose operation failed.
func (r CommitResult) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if !o.OK() {
			out = append(out, o)
		}
	}
	return out
}

// Succeeded counts successful operations.
func (r CommitResult) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.OK() {
			n++
		}
	}
	return n
}

// Count returns how many operations of kind op were attempted.
func (r CommitResult) Count(op OpKind) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Op == op {
			n++
		}
	}
	return n
}

// RecordState is where a record sits in its lifecycle.
type RecordState string

const (
	StatePendingCreate     RecordState = "pending_create"
	StatePersisted         RecordState = "persisted"
	StatePersistedModified RecordState = "persisted_modified"
	StateTombstoned        RecordState = "tombstoned"
)

// Staged summarizes uncommitted work in a store.
type Staged struct {
	Creates int
	Updates int
	Deletes int
}

// Total is the number of remote operations the next commit will attempt.
func (s Staged) Total() int { return s.Creates + s.Updates + s.Deletes }
