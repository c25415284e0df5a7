// Package templates holds the HTML components of the dashboard.
//
// Components are written in templ (*.templ) and compiled with `templ generate`;
// the generated *_templ.go files are committed. Handlers render the same
// components for full page loads and HTMX swaps.
package templates

import (
	"fmt"
	"strings"
)

// ProductRow is one line of the product table, already formatted for display.
type ProductRow struct {
	Key          string
	RecordID     string
	Name         string
	RegularPrice string
	SalePrice    string
	Categories   string
	Status       string
	State        string
	HasIssues    bool
}

// TableData is the product table with the staged-change counters above it.
type TableData struct {
	SheetKey string
	Rows     []ProductRow
	Total    int
	Creates  int
	Updates  int
	Deletes  int
	Query    string
	Category string
	Status   string
}

// Counts is the line above the table.
func (d TableData) Counts() string {
	return fmt.Sprintf("%d products, %d to create, %d to update, %d to delete",
		d.Total, d.Creates, d.Updates, d.Deletes)
}

// DashboardData is everything the dashboard page needs.
type DashboardData struct {
	DefaultURL string
	Loaded     bool
	Generation bool
	Table      TableData
	Statuses   []string
}

// ProductForm is the editor for one product. Key is empty for a new one.
type ProductForm struct {
	Key              string
	Name             string
	Description      string
	ShortDescription string
	RegularPrice     string
	SalePrice        string
	URLSlug          string
	Categories       string
	Status           string
	SourceID         string
	Statuses         []string
	Generation       bool
}

// IsNew reports whether the form drafts a new product.
func (f ProductForm) IsNew() bool { return f.Key == "" }

// improveVals is the hx-vals payload asking for a better description.
func (f ProductForm) improveVals() string {
	return fmt.Sprintf(`{"recordId":%q}`, f.Key)
}

// Count is one labelled number in the analytics panel.
type Count struct {
	Label string
	Count int
}

// SummaryData is the analytics panel.
type SummaryData struct {
	Headline   string
	Statuses   []Count
	Categories []Count
	PriceBins  []Count
	MaxBin     int
}

func selected(option, current string) bool {
	return strings.EqualFold(option, current)
}
