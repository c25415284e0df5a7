package web

// forms.go reads the dashboard's HTMX form posts into the same request types
// the JSON API decodes, and builds the editor views.

import (
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/JonMunkholm/shopsheet/internal/core"
	"github.com/JonMunkholm/shopsheet/internal/web/templates"
)

// isJSONBody reports whether the request body is JSON rather than a form.
func isJSONBody(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Content-Type"), "application/json")
}

// readForm parses a url-encoded body under the body size cap.
func readForm(w http.ResponseWriter, r *http.Request) (url.Values, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := r.ParseForm(); err != nil {
		return nil, badRequest("invalid form: %v", err)
	}
	return r.PostForm, nil
}

// formBool reads a checkbox or hidden boolean field.
func formBool(form url.Values, name string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(form.Get(name)))
	return b
}

func productInputFromForm(form url.Values) productInput {
	return productInput{
		Name:             form.Get("name"),
		Description:      form.Get("description"),
		ShortDescription: form.Get("shortDescription"),
		RegularPrice:     form.Get("regularPrice"),
		SalePrice:        form.Get("salePrice"),
		URLSlug:          form.Get("urlSlug"),
		Categories:       core.SplitCategories(form.Get("categories")),
		Status:           form.Get("status"),
		SourceID:         form.Get("sourceId"),
	}
}

// patchFromForm turns an editor post into a patch holding only the fields
// that differ from what the editor showed for cur. Cells the sheet had
// unreadable values in are left alone unless the user typed over them.
func patchFromForm(form url.Values, cur core.Record) productPatch {
	var p productPatch
	text := func(name, shown string) *string {
		if !form.Has(name) {
			return nil
		}
		v := form.Get(name)
		if v == shown {
			return nil
		}
		return &v
	}
	p.Name = text("name", cur.Name)
	p.Description = text("description", cur.Description)
	p.ShortDescription = text("shortDescription", cur.ShortDescription)
	p.RegularPrice = text("regularPrice", core.FormatPrice(cur.RegularPrice))
	p.SalePrice = text("salePrice", core.FormatPrice(cur.SalePrice))
	p.URLSlug = text("urlSlug", cur.URLSlug)
	p.Status = text("status", cur.Status.Label())
	p.SourceID = text("sourceId", cur.SourceID)
	if cats := text("categories", core.JoinCategories(cur.Categories)); cats != nil {
		split := core.SplitCategories(*cats)
		p.Categories = &split
	}
	return p
}

func statusLabels() []string {
	out := make([]string, len(core.Statuses))
	for i, st := range core.Statuses {
		out[i] = st.Label()
	}
	return out
}

// editorForm fills the product editor from rec. A zero rec gives the form
// for a new product.
func (s *Server) editorForm(rec core.Record) templates.ProductForm {
	f := templates.ProductForm{
		Key:              rec.Key(),
		Name:             rec.Name,
		Description:      rec.Description,
		ShortDescription: rec.ShortDescription,
		RegularPrice:     core.FormatPrice(rec.RegularPrice),
		SalePrice:        core.FormatPrice(rec.SalePrice),
		URLSlug:          rec.URLSlug,
		Categories:       core.JoinCategories(rec.Categories),
		Status:           rec.Status.Label(),
		SourceID:         rec.SourceID,
		Statuses:         statusLabels(),
		Generation:       s.cfg.TextGen.Enabled(),
	}
	if f.Status == "" {
		f.Status = core.StatusDraft.Label()
	}
	return f
}

// respondStaged answers an HTMX mutation with the refreshed table and a
// notice that closes the editor.
func respondStaged(w http.ResponseWriter, r *http.Request, store *core.RecordStore, message string, details []string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	templates.ProductTable(tableData(store, store.Records(), core.Filter{})).Render(r.Context(), w)
	templates.Flash(message, details).Render(r.Context(), w)
}

// failureLine describes a per-item failure for a notice.
func failureLine(subject string, err error) string {
	msg := core.MapError(err)
	line := subject + ": " + msg.Message
	if fields := fieldErrors(err); len(fields) > 0 {
		parts := make([]string, 0, len(fields))
		for _, k := range slices.Sorted(maps.Keys(fields)) {
			parts = append(parts, k+" "+fields[k])
		}
		line += " (" + strings.Join(parts, "; ") + ")"
	}
	return line
}

// respondSessionTable is respondStaged for handlers that do not hold the
// session lock.
func (s *Server) respondSessionTable(w http.ResponseWriter, r *http.Request, message string, details []string) {
	store, unlock, err := lockedStore(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer unlock()
	respondStaged(w, r, store, message, details)
}
