package web

import (
	"net/http"
	"net/url"

	"github.com/JonMunkholm/shopsheet/internal/core"
	"github.com/JonMunkholm/shopsheet/internal/logging"
	"github.com/JonMunkholm/shopsheet/internal/web/templates"
	"github.com/go-chi/chi/v5"
)

// handleListProducts returns the session's records, filtered by the q,
// category and status query parameters.
func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	store, unlock, err := lockedStore(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer unlock()

	f := filterFrom(r)
	respondCatalog(w, r, store, core.FilterRecords(store.Records(), f), f, http.StatusOK)
}

// handleGetProduct returns one record by record_id or draft ref.
func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	store, unlock, err := lockedStore(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer unlock()

	rec, err := store.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, storeView(store, rec))
}

// handleCreateProduct stages a new record for append. It takes the JSON
// body or the dashboard editor's form.
func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var in productInput
	if isJSONBody(r) {
		if err := decodeJSON(r, &in); err != nil {
			s.respondError(w, r, err)
			return
		}
	} else {
		form, err := readForm(w, r)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		in = productInputFromForm(form)
	}
	draft, err := in.record()
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	store, unlock, err := lockedStore(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer unlock()

	rec, err := store.Create(draft)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if isHTMX(r) {
		respondStaged(w, r, store, "Staged "+rec.Name+" for creation.", nil)
		return
	}
	writeJSON(w, http.StatusCreated, storeView(store, rec))
}

// handleUpdateProduct stages changes to one record. An invalid result leaves
// the record untouched and answers 422 naming each field. A form post only
// changes the fields the user edited.
func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var (
		patch productPatch
		form  url.Values
		err   error
	)
	if isJSONBody(r) {
		err = decodeJSON(r, &patch)
	} else {
		form, err = readForm(w, r)
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	store, unlock, err := lockedStore(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer unlock()

	key := chi.URLParam(r, "id")
	if form != nil {
		cur, err := store.Get(key)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		patch = patchFromForm(form, cur)
	}
	ch, err := patch.changes()
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	rec, err := store.Update(key, ch)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if isHTMX(r) {
		respondStaged(w, r, store, "Staged changes to "+rec.Name+".", nil)
		return
	}
	writeJSON(w, http.StatusOK, storeView(store, rec))
}

// handleDeleteProduct stages a delete. Pending creates are dropped outright.
func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	store, unlock, err := lockedStore(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer unlock()

	if err := store.Delete(chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondCatalog(w, r, store, store.Records(), core.Filter{}, http.StatusOK)
}

// handleSummary returns price, category and status analytics for the
// filtered records, as JSON or as the dashboard panel. The bins parameter
// sets the histogram resolution.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	bins, err := parseIntParam(r, "bins", core.DefaultPriceBins)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if bins < 1 || bins > 100 {
		s.respondError(w, r, badRequest("bins must be between 1 and 100"))
		return
	}

	store, unlock, err := lockedStore(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer unlock()

	sum := core.Summarize(core.FilterRecords(store.Records(), filterFrom(r)), bins)
	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		templates.SummaryPanel(summaryData(sum)).Render(r.Context(), w)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// handleExport streams the filtered records as CSV in the sheet's column order.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	store, unlock, err := lockedStore(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer unlock()

	records := core.FilterRecords(store.Records(), filterFrom(r))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="products.csv"`)
	if err := core.WriteCSV(w, records); err != nil {
		// Headers are sent; all that is left is to log.
		logging.FromContext(r.Context()).Error("csv export failed", "error", err)
	}
}
