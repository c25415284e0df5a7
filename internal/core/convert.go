package core

// convert.go turns raw spreadsheet cells into typed record values and back.
//
// Sheets return whatever a human typed, so parsing is forgiving:
//   - Currency symbols and thousands separators in prices
//   - Accounting format "(12.50)" for negatives
//   - Excel formula prefixes (="value") and stray quotes
//
// Empty cells are never errors. They become "" or a null price.

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// numericRegex validates that a string is a plain decimal after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)

// ParsePrice converts a price cell to a nullable decimal.
// An empty cell is a valid null price; anything that is not a number after
// cleanup is an error.
func ParsePrice(s string) (decimal.NullDecimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	raw := s

	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if isNegative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return decimal.NullDecimal{}, fmt.Errorf("not a number: %q", raw)
	}
	d, err := decimal.NewFromString(strings.TrimSuffix(s, "."))
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("not a number: %q", raw)
	}
	return decimal.NewNullDecimal(d), nil
}

// FormatPrice renders a price for a sheet cell; null prices are empty.
func FormatPrice(p decimal.NullDecimal) string {
	if !p.Valid {
		return ""
	}
	return p.Decimal.String()
}

// SplitCategories splits a comma-separated categories cell, dropping blanks.
func SplitCategories(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// JoinCategories is the inverse of SplitCategories.
func JoinCategories(c []string) string {
	return strings.Join(c, ", ")
}

// MakeHeaderIndex creates a HeaderIndex from a header row.
// Keys are lowercased for case-insensitive matching.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := strings.ToLower(CleanCell(h))
		if _, dup := idx[key]; dup {
			continue
		}
		idx[key] = i
	}
	return idx
}

// CleanCell trims whitespace and unwraps the ="..." text-formula form some
// exports use. Other quotes are content and are kept.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 3 && strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	}
	return strings.TrimSpace(s)
}
