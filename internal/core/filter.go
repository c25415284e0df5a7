package core

import "strings"

// Filter narrows a record list for display. Zero fields match everything.
type Filter struct {
	Query    string // case-insensitive substring of name or description
	Category string // exact category, case-insensitive
	Status   Status
}

// Match reports whether r passes every set criterion.
func (f Filter) Match(r Record) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(r.Name), q) &&
			!strings.Contains(strings.ToLower(r.Description), q) {
			return false
		}
	}
	if c := strings.TrimSpace(f.Category); c != "" {
		found := false
		for _, rc := range r.Categories {
			if strings.EqualFold(rc, c) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	return true
}

// FilterRecords returns the records that match f, preserving order.
func FilterRecords(records []Record, f Filter) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}
