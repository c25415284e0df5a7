package core

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// recordIDPattern accepts the ids the store issues (UUIDs) as well as the
// short opaque ids some sheets already carry: letters, digits, '-' and '_'.
var recordIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// ValidRecordID reports whether id is a well-formed record_id.
func ValidRecordID(id string) bool {
	return recordIDPattern.MatchString(id)
}

// Values returns the record as a row in canonical column order.
// SheetRowIndex and DraftRef are positional metadata and are not written.
func (r Record) Values() []string {
	v := make([]string, columnCount)
	v[ColName] = r.Name
	v[ColDescription] = r.Description
	v[ColSourceID] = r.SourceID
	v[ColShortDescription] = r.ShortDescription
	v[ColRegularPrice] = FormatPrice(r.RegularPrice)
	v[ColURLSlug] = r.URLSlug
	v[ColCategories] = JoinCategories(r.Categories)
	v[ColSalePrice] = FormatPrice(r.SalePrice)
	v[ColStatus] = r.Status.Label()
	v[ColRecordID] = r.RecordID
	return v
}

// RecordFromRow builds a record from a sheet row read through layout.
// Missing optional cells become empty strings or null prices; unparseable
// prices become null. Only a malformed record_id is an error.
func RecordFromRow(row []string, layout Layout, index int) (Record, error) {
	r, _, err := decodeRow(row, layout, index)
	return r, err
}

// decodeRow is RecordFromRow that also reports cells it had to discard.
func decodeRow(row []string, layout Layout, index int) (Record, Violations, error) {
	id := layout.Cell(row, ColRecordID)
	if id != "" && !ValidRecordID(id) {
		return Record{}, nil, fmt.Errorf("row %d: malformed record_id %q", index+2, id)
	}

	var issues Violations
	note := func(field, msg string) {
		if issues == nil {
			issues = Violations{}
		}
		issues[field] = msg
	}

	regular, err := ParsePrice(layout.Cell(row, ColRegularPrice))
	if err != nil {
		note("regular_price", "sheet value "+err.Error())
	}
	sale, err := ParsePrice(layout.Cell(row, ColSalePrice))
	if err != nil {
		note("sale_price", "sheet value "+err.Error())
	}

	r := Record{
		RecordID:         id,
		SheetRowIndex:    index,
		Name:             layout.Cell(row, ColName),
		Description:      layout.Cell(row, ColDescription),
		ShortDescription: layout.Cell(row, ColShortDescription),
		RegularPrice:     regular,
		SalePrice:        sale,
		URLSlug:          layout.Cell(row, ColURLSlug),
		Categories:       SplitCategories(layout.Cell(row, ColCategories)),
		Status:           ParseStatus(layout.Cell(row, ColStatus)),
		SourceID:         layout.Cell(row, ColSourceID),
	}
	return r, issues, nil
}

// Clone returns a copy that shares no slices with r.
func (r Record) Clone() Record {
	out := r
	if r.Categories != nil {
		out.Categories = slices.Clone(r.Categories)
	}
	return out
}

// Equal reports whether two records hold the same values and position.
// Prices compare numerically, so "10" equals "10.00".
func (r Record) Equal(o Record) bool {
	return r.RecordID == o.RecordID &&
		r.SheetRowIndex == o.SheetRowIndex &&
		r.DraftRef == o.DraftRef &&
		r.sameContent(o)
}

// sameContent compares the fields written to the sheet, ignoring position.
func (r Record) sameContent(o Record) bool {
	return r.Name == o.Name &&
		r.Description == o.Description &&
		r.ShortDescription == o.ShortDescription &&
		priceEqual(r.RegularPrice, o.RegularPrice) &&
		priceEqual(r.SalePrice, o.SalePrice) &&
		r.URLSlug == o.URLSlug &&
		slices.Equal(r.Categories, o.Categories) &&
		r.Status == o.Status &&
		r.SourceID == o.SourceID
}

func cleanCategories(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, c := range in {
		out = append(out, strings.TrimSpace(c))
	}
	return out
}
