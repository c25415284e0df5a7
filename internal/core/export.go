package core

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/jszwec/csvutil"
)

// productCSV is one record in the sheet's own column names, so an export can
// be pasted back into a worksheet and read back by ImportCSV.
type productCSV struct {
	Name             string `csv:"Name"`
	Description      string `csv:"Description"`
	SourceID         string `csv:"ID"`
	ShortDescription string `csv:"Short description"`
	RegularPrice     string `csv:"Regular price"`
	URLSlug          string `csv:"URL Slug"`
	Categories       string `csv:"Categories"`
	SalePrice        string `csv:"Sale price"`
	Status           string `csv:"Status"`
	RecordID         string `csv:"record_id"`
}

func toExportRow(r Record) productCSV {
	v := r.Values()
	return productCSV{
		Name:             v[ColName],
		Description:      v[ColDescription],
		SourceID:         v[ColSourceID],
		ShortDescription: v[ColShortDescription],
		RegularPrice:     v[ColRegularPrice],
		URLSlug:          v[ColURLSlug],
		Categories:       v[ColCategories],
		SalePrice:        v[ColSalePrice],
		Status:           v[ColStatus],
		RecordID:         v[ColRecordID],
	}
}

// WriteCSV writes records as CSV with a header row, even when empty.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)

	if err := enc.EncodeHeader(productCSV{}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		if err := enc.Encode(toExportRow(r)); err != nil {
			return fmt.Errorf("write record %s: %w", r.Key(), err)
		}
	}

	cw.Flush()
	return cw.Error()
}
