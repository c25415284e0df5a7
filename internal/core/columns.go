package core

// columns.go defines the fixed spreadsheet column contract.
//
// Rows are read through a Layout resolved once from the header row: header
// names are matched case-insensitively and in any order, but the set must be
// exactly the contract below. Rows are written in the sheet's own layout so a
// reordered header never misaligns cells.

import (
	"fmt"
	"strings"
)

// FieldType is the kind of value a column holds.
type FieldType int

const (
	FieldText FieldType = iota
	FieldNumeric
	FieldEnum
	FieldList
	FieldIdentity
)

// Column identifies a position in the canonical column order.
type Column int

const (
	ColName Column = iota
	ColDescription
	ColSourceID
	ColShortDescription
	ColRegularPrice
	ColURLSlug
	ColCategories
	ColSalePrice
	ColStatus
	ColRecordID

	columnCount
)

// FieldSpec describes one spreadsheet column.
type FieldSpec struct {
	Header     string    // Header cell text, matched case-insensitively
	Field      string    // Record field name used in violations and APIs
	Type       FieldType // Expected value kind
	EnumValues []string  // Allowed values for FieldEnum
}

// Columns lists the contract in canonical write order.
var Columns = [columnCount]FieldSpec{
	ColName:             {Header: "Name", Field: "name", Type: FieldText},
	ColDescription:      {Header: "Description", Field: "description", Type: FieldText},
	ColSourceID:         {Header: "ID", Field: "source_id", Type: FieldText},
	ColShortDescription: {Header: "Short description", Field: "short_description", Type: FieldText},
	ColRegularPrice:     {Header: "Regular price", Field: "regular_price", Type: FieldNumeric},
	ColURLSlug:          {Header: "URL Slug", Field: "url_slug", Type: FieldText},
	ColCategories:       {Header: "Categories", Field: "categories", Type: FieldList},
	ColSalePrice:        {Header: "Sale price", Field: "sale_price", Type: FieldNumeric},
	ColStatus:           {Header: "Status", Field: "status", Type: FieldEnum, EnumValues: []string{"Draft", "Published", "Archived"}},
	ColRecordID:         {Header: "record_id", Field: "record_id", Type: FieldIdentity},
}

// Header returns the header row in canonical order.
func Header() []string {
	h := make([]string, columnCount)
	for i, spec := range Columns {
		h[i] = spec.Header
	}
	return h
}

// HeaderIndex maps lowercased header names to their position in a row.
type HeaderIndex map[string]int

// Layout maps canonical columns to cell positions in a particular sheet.
type Layout struct {
	pos   [columnCount]int
	width int
}

// CanonicalLayout is the layout of a sheet whose header is exactly Header().
func CanonicalLayout() Layout {
	var l Layout
	for i := range l.pos {
		l.pos[i] = i
	}
	l.width = int(columnCount)
	return l
}

// HeaderMismatchError describes how a header row differs from the contract.
type HeaderMismatchError struct {
	Missing    []string
	Unexpected []string
	Duplicate  []string
}

func (e *HeaderMismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing columns: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, "unexpected columns: "+strings.Join(e.Unexpected, ", "))
	}
	if len(e.Duplicate) > 0 {
		parts = append(parts, "duplicate columns: "+strings.Join(e.Duplicate, ", "))
	}
	return "header mismatch: " + strings.Join(parts, "; ")
}

// ResolveLayout validates a header row against the contract and returns the
// layout for reading and writing that sheet. Trailing blank header cells are
// ignored; any other difference from the column set is an error.
func ResolveLayout(header []string) (Layout, error) {
	header = trimTrailingBlank(header)
	idx := MakeHeaderIndex(header)

	mismatch := &HeaderMismatchError{}
	seen := make(map[string]bool, len(header))
	for _, h := range header {
		key := strings.ToLower(CleanCell(h))
		if seen[key] {
			mismatch.Duplicate = append(mismatch.Duplicate, CleanCell(h))
		}
		seen[key] = true
		if _, known := columnByHeader[key]; !known {
			mismatch.Unexpected = append(mismatch.Unexpected, CleanCell(h))
		}
	}

	var l Layout
	for i, spec := range Columns {
		pos, ok := idx[strings.ToLower(spec.Header)]
		if !ok {
			mismatch.Missing = append(mismatch.Missing, spec.Header)
			continue
		}
		l.pos[i] = pos
	}

	if len(mismatch.Missing) > 0 || len(mismatch.Unexpected) > 0 || len(mismatch.Duplicate) > 0 {
		return Layout{}, mismatch
	}
	l.width = len(header)
	return l, nil
}

// Cell returns the cleaned value of column c in row, or "" when the row is short.
func (l Layout) Cell(row []string, c Column) string {
	p := l.pos[c]
	if p >= len(row) {
		return ""
	}
	return CleanCell(row[p])
}

// Arrange places canonical-order values at this layout's positions.
func (l Layout) Arrange(values []string) []string {
	out := make([]string, l.width)
	for c := Column(0); c < columnCount; c++ {
		if int(c) < len(values) {
			out[l.pos[c]] = values[c]
		}
	}
	return out
}

// WithCell returns a copy of row, padded to the sheet width, with column c
// set to v. Every other cell keeps its raw value.
func (l Layout) WithCell(row []string, c Column, v string) []string {
	out := make([]string, max(l.width, len(row)))
	copy(out, row)
	out[l.pos[c]] = v
	return out
}

// Width is the number of header cells in the sheet.
func (l Layout) Width() int { return l.width }

// IsZero reports whether the layout was never resolved.
func (l Layout) IsZero() bool { return l.width == 0 }

var columnByHeader = func() map[string]Column {
	m := make(map[string]Column, columnCount)
	for i, spec := range Columns {
		m[strings.ToLower(spec.Header)] = Column(i)
	}
	return m
}()

// ColumnForField returns the column holding a record field name.
func ColumnForField(field string) (Column, error) {
	for i, spec := range Columns {
		if spec.Field == field {
			return Column(i), nil
		}
	}
	return 0, fmt.Errorf("unknown field %q", field)
}

func trimTrailingBlank(row []string) []string {
	end := len(row)
	for end > 0 && CleanCell(row[end-1]) == "" {
		end--
	}
	return row[:end]
}
