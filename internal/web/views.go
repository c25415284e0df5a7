package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/shopsheet/internal/core"
	"github.com/JonMunkholm/shopsheet/internal/web/templates"
)

// maxBodySize caps request bodies.
const maxBodySize = 1 << 20

// productView is the API representation of a record.
type productView struct {
	Key              string           `json:"key"`
	RecordID         string           `json:"recordId,omitempty"`
	DraftRef         string           `json:"draftRef,omitempty"`
	RowIndex         int              `json:"rowIndex"`
	State            core.RecordState `json:"state,omitempty"`
	Name             string           `json:"name"`
	Description      string           `json:"description"`
	ShortDescription string           `json:"shortDescription"`
	RegularPrice     string           `json:"regularPrice"`
	SalePrice        string           `json:"salePrice"`
	URLSlug          string           `json:"urlSlug"`
	Categories       []string         `json:"categories"`
	Status           string           `json:"status"`
	SourceID         string           `json:"sourceId"`
	Issues           core.Violations  `json:"issues,omitempty"`
}

func viewOf(rec core.Record) productView {
	cats := rec.Categories
	if cats == nil {
		cats = []string{}
	}
	return productView{
		Key:              rec.Key(),
		RecordID:         rec.RecordID,
		DraftRef:         rec.DraftRef,
		RowIndex:         rec.SheetRowIndex,
		Name:             rec.Name,
		Description:      rec.Description,
		ShortDescription: rec.ShortDescription,
		RegularPrice:     core.FormatPrice(rec.RegularPrice),
		SalePrice:        core.FormatPrice(rec.SalePrice),
		URLSlug:          rec.URLSlug,
		Categories:       cats,
		Status:           rec.Status.Label(),
		SourceID:         rec.SourceID,
	}
}

// storeView adds the store's bookkeeping for rec.
func storeView(store *core.RecordStore, rec core.Record) productView {
	v := viewOf(rec)
	if st, err := store.State(rec.Key()); err == nil {
		v.State = st
	}
	v.Issues = store.Issues(rec.Key())
	return v
}

// catalogView is the answer to load, list and mutation requests.
type catalogView struct {
	Sheet    string        `json:"sheet"`
	LoadedAt time.Time     `json:"loadedAt"`
	Total    int           `json:"total"`
	Staged   stagedView    `json:"staged"`
	Products []productView `json:"products"`
}

type stagedView struct {
	Creates int `json:"creates"`
	Updates int `json:"updates"`
	Deletes int `json:"deletes"`
}

func newCatalogView(store *core.RecordStore, records []core.Record) catalogView {
	st := store.Staged()
	out := catalogView{
		Sheet:    store.Ref().Key(),
		LoadedAt: store.LoadedAt(),
		Total:    store.Len(),
		Staged:   stagedView{Creates: st.Creates, Updates: st.Updates, Deletes: st.Deletes},
		Products: make([]productView, 0, len(records)),
	}
	for _, rec := range records {
		out.Products = append(out.Products, storeView(store, rec))
	}
	return out
}

// tableData builds the dashboard table for records.
func tableData(store *core.RecordStore, records []core.Record, f core.Filter) templates.TableData {
	st := store.Staged()
	d := templates.TableData{
		SheetKey: store.Ref().Key(),
		Total:    store.Len(),
		Creates:  st.Creates,
		Updates:  st.Updates,
		Deletes:  st.Deletes,
		Query:    f.Query,
		Category: f.Category,
		Status:   string(f.Status),
		Rows:     make([]templates.ProductRow, 0, len(records)),
	}
	for _, rec := range records {
		row := templates.ProductRow{
			Key:          rec.Key(),
			RecordID:     rec.RecordID,
			Name:         rec.Name,
			RegularPrice: core.FormatPrice(rec.RegularPrice),
			SalePrice:    core.FormatPrice(rec.SalePrice),
			Categories:   core.JoinCategories(rec.Categories),
			Status:       rec.Status.Label(),
			HasIssues:    len(store.Issues(rec.Key())) > 0,
		}
		if st, err := store.State(rec.Key()); err == nil {
			row.State = string(st)
		}
		d.Rows = append(d.Rows, row)
	}
	return d
}

// respondCatalog answers with the table partial for HTMX and the catalog
// JSON otherwise.
func respondCatalog(w http.ResponseWriter, r *http.Request, store *core.RecordStore, records []core.Record, f core.Filter, status int) {
	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		templates.ProductTable(tableData(store, records, f)).Render(r.Context(), w)
		return
	}
	writeJSON(w, status, newCatalogView(store, records))
}

// productInput is the body of POST /api/products. Prices are strings so
// they go through the same parsing as sheet cells.
type productInput struct {
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	ShortDescription string   `json:"shortDescription"`
	RegularPrice     string   `json:"regularPrice"`
	SalePrice        string   `json:"salePrice"`
	URLSlug          string   `json:"urlSlug"`
	Categories       []string `json:"categories"`
	Status           string   `json:"status"`
	SourceID         string   `json:"sourceId"`
}

func (in productInput) record() (core.Record, error) {
	v := core.Violations{}
	regular, err := core.ParsePrice(in.RegularPrice)
	if err != nil {
		v["regular_price"] = err.Error()
	}
	sale, err := core.ParsePrice(in.SalePrice)
	if err != nil {
		v["sale_price"] = err.Error()
	}
	if len(v) > 0 {
		return core.Record{}, &core.ValidationError{Violations: v}
	}
	return core.Record{
		Name:             in.Name,
		Description:      in.Description,
		ShortDescription: in.ShortDescription,
		RegularPrice:     regular,
		SalePrice:        sale,
		URLSlug:          in.URLSlug,
		Categories:       in.Categories,
		Status:           core.ParseStatus(in.Status),
		SourceID:         in.SourceID,
	}, nil
}

// productPatch is the body of PATCH /api/products/{id}; absent fields are
// left alone.
type productPatch struct {
	Name             *string   `json:"name"`
	Description      *string   `json:"description"`
	ShortDescription *string   `json:"shortDescription"`
	RegularPrice     *string   `json:"regularPrice"`
	SalePrice        *string   `json:"salePrice"`
	URLSlug          *string   `json:"urlSlug"`
	Categories       *[]string `json:"categories"`
	Status           *string   `json:"status"`
	SourceID         *string   `json:"sourceId"`
}

func (p productPatch) changes() (core.Changes, error) {
	ch := core.Changes{
		Name:             p.Name,
		Description:      p.Description,
		ShortDescription: p.ShortDescription,
		URLSlug:          p.URLSlug,
		Categories:       p.Categories,
		SourceID:         p.SourceID,
	}
	v := core.Violations{}
	if p.RegularPrice != nil {
		price, err := core.ParsePrice(*p.RegularPrice)
		if err != nil {
			v["regular_price"] = err.Error()
		}
		ch.RegularPrice = &price
	}
	if p.SalePrice != nil {
		price, err := core.ParsePrice(*p.SalePrice)
		if err != nil {
			v["sale_price"] = err.Error()
		}
		ch.SalePrice = &price
	}
	if p.Status != nil {
		st := core.ParseStatus(*p.Status)
		ch.Status = &st
	}
	if len(v) > 0 {
		return core.Changes{}, &core.ValidationError{Violations: v}
	}
	return ch, nil
}

// decodeJSON reads a JSON body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}

// filterFrom reads the dashboard filter from the query string.
func filterFrom(r *http.Request) core.Filter {
	q := r.URL.Query()
	f := core.Filter{
		Query:    strings.TrimSpace(q.Get("q")),
		Category: strings.TrimSpace(q.Get("category")),
	}
	if st := strings.TrimSpace(q.Get("status")); st != "" {
		f.Status = core.ParseStatus(st)
	}
	return f
}

// parseIntParam parses a non-negative integer query parameter with a default.
func parseIntParam(r *http.Request, name string, defaultVal int) (int, error) {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return 0, badRequest("%s must be a non-negative integer", name)
	}
	return i, nil
}

// summaryData shapes a summary for the analytics panel.
func summaryData(sum core.Summary) templates.SummaryData {
	d := templates.SummaryData{
		Headline: fmt.Sprintf("%d products, %d priced, %d on sale", sum.Total, sum.Priced, sum.OnSale),
	}
	if sum.AveragePrice.Valid {
		d.Headline += fmt.Sprintf(", average price %s (%s to %s)",
			sum.AveragePrice.Decimal.StringFixed(2),
			sum.MinPrice.Decimal.StringFixed(2),
			sum.MaxPrice.Decimal.StringFixed(2))
	}
	for _, st := range sum.Statuses {
		label := st.Status.Label()
		if label == "" {
			label = "(none)"
		}
		d.Statuses = append(d.Statuses, templates.Count{Label: label, Count: st.Count})
	}
	for _, c := range sum.Categories {
		d.Categories = append(d.Categories, templates.Count{Label: c.Category, Count: c.Count})
	}
	if sum.Priced > 0 {
		for _, b := range sum.PriceBins {
			d.PriceBins = append(d.PriceBins, templates.Count{
				Label: b.Lower.StringFixed(2) + "-" + b.Upper.StringFixed(2),
				Count: b.Count,
			})
			d.MaxBin = max(d.MaxBin, b.Count)
		}
	}
	return d
}
