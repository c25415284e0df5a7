package core

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/jszwec/csvutil"
)

// MaxImportRows caps the data rows of one CSV import.
const MaxImportRows = 5000

// ImportRejection is a CSV line that was not staged.
type ImportRejection struct {
	Line int
	Err  error
}

// ImportResult lists what a CSV import staged and what it skipped.
type ImportResult struct {
	Staged   []Record
	Rejected []ImportRejection
}

// ImportCSV stages every valid CSV row as a pending create. The header
// uses the sheet's column names, matched case-insensitively and in any
// order; a Name column is required and unknown columns are ignored.
// record_id cells are ignored since ids are assigned on commit.
// An unreadable file stages nothing and returns an error.
func (s *RecordStore) ImportCSV(r io.Reader) (ImportResult, error) {
	if !s.loaded {
		return ImportResult{}, ErrNotLoaded
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return ImportResult{}, &ValidationError{Violations: Violations{"file": "is empty"}}
	}
	if err != nil {
		return ImportResult{}, &ValidationError{Violations: Violations{"file": "is not valid CSV: " + err.Error()}}
	}
	header = canonicalHeader(header)
	if !slices.Contains(header, Columns[ColName].Header) {
		return ImportResult{}, &ValidationError{Violations: Violations{"file": "has no Name column"}}
	}

	dec, err := csvutil.NewDecoder(cr, header...)
	if err != nil {
		return ImportResult{}, &ValidationError{Violations: Violations{"file": "has an unusable header: " + err.Error()}}
	}

	var (
		res  ImportResult
		rows int
	)
	for {
		var row productCSV
		err := dec.Decode(&row)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !errors.Is(err, csvutil.ErrFieldCount) {
			return s.abortImport(res, "is not valid CSV: "+err.Error())
		}
		line, _ := cr.FieldPos(0)
		if err != nil {
			res.Rejected = append(res.Rejected, ImportRejection{Line: line, Err: err})
			continue
		}

		rows++
		if rows > MaxImportRows {
			return s.abortImport(res, fmt.Sprintf("has more than %d rows", MaxImportRows))
		}

		draft, err := row.record()
		if err == nil {
			draft, err = s.Create(draft)
		}
		if err != nil {
			res.Rejected = append(res.Rejected, ImportRejection{Line: line, Err: err})
			continue
		}
		res.Staged = append(res.Staged, draft)
	}
	return res, nil
}

// abortImport drops the drafts an import already staged.
func (s *RecordStore) abortImport(res ImportResult, problem string) (ImportResult, error) {
	for _, r := range res.Staged {
		_ = s.Delete(r.DraftRef)
	}
	return ImportResult{}, &ValidationError{Violations: Violations{"file": problem}}
}

// record converts an imported row to a draft. The record_id is dropped.
func (p productCSV) record() (Record, error) {
	v := Violations{}
	regular, err := ParsePrice(p.RegularPrice)
	if err != nil {
		v["regular_price"] = err.Error()
	}
	sale, err := ParsePrice(p.SalePrice)
	if err != nil {
		v["sale_price"] = err.Error()
	}
	if len(v) > 0 {
		return Record{}, &ValidationError{Violations: v}
	}
	return Record{
		Name:             CleanCell(p.Name),
		Description:      CleanCell(p.Description),
		SourceID:         CleanCell(p.SourceID),
		ShortDescription: CleanCell(p.ShortDescription),
		RegularPrice:     regular,
		SalePrice:        sale,
		URLSlug:          CleanCell(p.URLSlug),
		Categories:       SplitCategories(CleanCell(p.Categories)),
		Status:           ParseStatus(CleanCell(p.Status)),
	}, nil
}

// canonicalHeader rewrites known column names to their contract spelling.
func canonicalHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = h
		if c, ok := columnByHeader[strings.ToLower(CleanCell(h))]; ok {
			out[i] = Columns[c].Header
		}
	}
	return out
}
