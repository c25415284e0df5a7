package web

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/JonMunkholm/shopsheet/internal/core"
	"github.com/JonMunkholm/shopsheet/internal/logging"
	"github.com/shopspring/decimal"
)

// maxImportSize caps an uploaded CSV file.
const maxImportSize = 5 << 20

type bulkStatusRequest struct {
	Keys   []string `json:"keys"`
	Status string   `json:"status"`
}

type bulkPriceRequest struct {
	Mode   string `json:"mode"`
	Amount string `json:"amount"`
	Target string `json:"target"`

	// The filter selecting the records to change, as on GET /api/products.
	Query    string `json:"q"`
	Category string `json:"category"`
	Status   string `json:"status"`
}

func (req bulkPriceRequest) adjustment() (core.PriceAdjustment, error) {
	adj := core.PriceAdjustment{
		Mode:   core.PriceMode(strings.ToLower(strings.TrimSpace(req.Mode))),
		Target: core.PriceTarget(strings.ToLower(strings.TrimSpace(req.Target))),
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		return adj, &core.ValidationError{Violations: core.Violations{"amount": "must be a number"}}
	}
	adj.Amount = amount
	return adj, nil
}

func (req bulkPriceRequest) filter() core.Filter {
	f := core.Filter{
		Query:    strings.TrimSpace(req.Query),
		Category: strings.TrimSpace(req.Category),
	}
	if st := strings.TrimSpace(req.Status); st != "" {
		f.Status = core.ParseStatus(st)
	}
	return f
}

type bulkFailureView struct {
	Key    string            `json:"key"`
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

type bulkView struct {
	Matched   int               `json:"matched"`
	Changed   int               `json:"changed"`
	Unchanged int               `json:"unchanged"`
	Failed    []bulkFailureView `json:"failed"`
	Catalog   catalogView       `json:"catalog"`
}

// respondBulk answers a bulk change with a notice for HTMX and the result
// plus catalog for JSON.
func respondBulk(w http.ResponseWriter, r *http.Request, store *core.RecordStore, res core.BulkResult) {
	logging.FromContext(r.Context()).Info("bulk change staged",
		"matched", res.Matched,
		"changed", res.Changed,
		"failed", len(res.Failed),
	)

	if isHTMX(r) {
		details := make([]string, 0, len(res.Failed))
		for _, f := range res.Failed {
			details = append(details, failureLine(f.Key, f.Err))
		}
		msg := fmt.Sprintf("Changed %d of %d products.", res.Changed, res.Matched)
		respondStaged(w, r, store, msg, details)
		return
	}

	view := bulkView{
		Matched:   res.Matched,
		Changed:   res.Changed,
		Unchanged: res.Unchanged,
		Failed:    make([]bulkFailureView, 0, len(res.Failed)),
		Catalog:   newCatalogView(store, store.Records()),
	}
	for _, f := range res.Failed {
		msg := core.MapError(f.Err)
		view.Failed = append(view.Failed, bulkFailureView{
			Key:    f.Key,
			Error:  msg.Message,
			Code:   msg.Code,
			Fields: fieldErrors(f.Err),
		})
	}
	writeJSON(w, http.StatusOK, view)
}

// handleBulkStatus stages one status on every listed record. Records that
// cannot take it are reported and left as they were.
func (s *Server) handleBulkStatus(w http.ResponseWriter, r *http.Request) {
	var req bulkStatusRequest
	if isJSONBody(r) {
		if err := decodeJSON(r, &req); err != nil {
			s.respondError(w, r, err)
			return
		}
	} else {
		form, err := readForm(w, r)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		req = bulkStatusRequest{Keys: form["key"], Status: form.Get("status")}
	}
	if len(req.Keys) == 0 {
		s.respondError(w, r, &core.ValidationError{Violations: core.Violations{"keys": "select at least one product"}})
		return
	}

	store, unlock, err := lockedStore(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer unlock()

	res, err := store.BulkSetStatus(req.Keys, core.Status(req.Status))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondBulk(w, r, store, res)
}

// handleBulkPrice stages a price change on every record matching the
// request's filter.
func (s *Server) handleBulkPrice(w http.ResponseWriter, r *http.Request) {
	var req bulkPriceRequest
	if isJSONBody(r) {
		if err := decodeJSON(r, &req); err != nil {
			s.respondError(w, r, err)
			return
		}
	} else {
		form, err := readForm(w, r)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		req = bulkPriceRequest{
			Mode:     form.Get("mode"),
			Amount:   form.Get("amount"),
			Target:   form.Get("target"),
			Query:    form.Get("q"),
			Category: form.Get("category"),
			Status:   form.Get("status"),
		}
	}
	adj, err := req.adjustment()
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

	res, err := store.BulkAdjustPrices(req.filter(), adj)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondBulk(w, r, store, res)
}

type importRejectionView struct {
	Line   int               `json:"line"`
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

type importView struct {
	Staged   []productView         `json:"staged"`
	Rejected []importRejectionView `json:"rejected"`
	Catalog  catalogView           `json:"catalog"`
}

// importBody returns the CSV of an import request: the "file" part of a
// multipart upload or the raw body.
func importBody(w http.ResponseWriter, r *http.Request) (io.Reader, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, func() {}, nil
	}

	if err := r.ParseMultipartForm(maxImportSize); err != nil {
		return nil, nil, badRequest("invalid upload: %v", err)
	}
	file, _, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil, &core.ValidationError{Violations: core.Violations{"file": "is required"}}
	}
	if err != nil {
		return nil, nil, badRequest("invalid upload: %v", err)
	}
	return file, func() { file.Close() }, nil
}

// handleImport stages every valid row of a CSV file as a new product. Rows
// that fail validation are reported by line and skipped.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, done, err := importBody(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer done()

	store, unlock, err := lockedStore(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer unlock()

	res, err := store.ImportCSV(body)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("csv imported",
		"staged", len(res.Staged),
		"rejected", len(res.Rejected),
	)

	if isHTMX(r) {
		details := make([]string, 0, len(res.Rejected))
		for _, rej := range res.Rejected {
			details = append(details, failureLine(fmt.Sprintf("Line %d", rej.Line), rej.Err))
		}
		msg := fmt.Sprintf("Staged %d products from the file, skipped %d rows.", len(res.Staged), len(res.Rejected))
		respondStaged(w, r, store, msg, details)
		return
	}

	view := importView{
		Staged:   make([]productView, 0, len(res.Staged)),
		Rejected: make([]importRejectionView, 0, len(res.Rejected)),
		Catalog:  newCatalogView(store, store.Records()),
	}
	for _, rec := range res.Staged {
		view.Staged = append(view.Staged, storeView(store, rec))
	}
	for _, rej := range res.Rejected {
		msg := core.MapError(rej.Err)
		view.Rejected = append(view.Rejected, importRejectionView{
			Line:   rej.Line,
			Error:  msg.Message,
			Code:   msg.Code,
			Fields: fieldErrors(rej.Err),
		})
	}
	writeJSON(w, http.StatusCreated, view)
}
