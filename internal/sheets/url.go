package sheets

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidRef means a spreadsheet URL or worksheet index cannot address a sheet.
var ErrInvalidRef = errors.New("invalid spreadsheet reference")

var (
	urlIDPattern  = regexp.MustCompile(`/spreadsheets/d/([A-Za-z0-9_-]+)`)
	bareIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// SpreadsheetID extracts the spreadsheet id from a Google Sheets URL such as
// https://docs.google.com/spreadsheets/d/<id>/edit#gid=0, or accepts a bare id.
func SpreadsheetID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: empty spreadsheet URL", ErrInvalidRef)
	}
	if m := urlIDPattern.FindStringSubmatch(ref); m != nil {
		return m[1], nil
	}
	if bareIDPattern.MatchString(ref) {
		return ref, nil
	}
	return "", fmt.Errorf("%w: %q is not a spreadsheet URL or id", ErrInvalidRef, ref)
}
