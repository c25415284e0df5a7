package web

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/shopsheet/internal/core"
	"github.com/JonMunkholm/shopsheet/internal/textgen"
	"github.com/JonMunkholm/shopsheet/internal/web/templates"
)

// maxBatchTypes caps the product types of one batch request.
const maxBatchTypes = 20

type descriptionRequest struct {
	// RecordID improves the description of a loaded record. Otherwise a
	// fresh description is written for Name.
	RecordID string   `json:"recordId"`
	Name     string   `json:"name"`
	Hints    []string `json:"hints"`
}

// handleGenerateDescription returns suggested copy. Nothing is staged; the
// client applies the text with PATCH /api/products/{id}. The editor gets the
// suggestion as a replacement description field.
func (s *Server) handleGenerateDescription(w http.ResponseWriter, r *http.Request) {
	var req descriptionRequest
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
		req = descriptionRequest{
			RecordID: form.Get("recordId"),
			Name:     form.Get("name"),
			Hints:    core.SplitCategories(form.Get("hints")),
		}
	}

	var (
		text string
		err  error
	)
	if id := strings.TrimSpace(req.RecordID); id != "" {
		rec, getErr := s.recordSnapshot(r, id)
		if getErr != nil {
			s.respondError(w, r, getErr)
			return
		}
		text, err = s.writer.ImproveDescription(r.Context(), rec)
	} else {
		text, err = s.writer.GenerateDescription(r.Context(), req.Name, req.Hints)
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		templates.DescriptionField(text).Render(r.Context(), w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"recordId":    req.RecordID,
		"description": text,
	})
}

// recordSnapshot copies one record out of the session without holding the
// session lock across the generation call.
func (s *Server) recordSnapshot(r *http.Request, key string) (core.Record, error) {
	store, unlock, err := lockedStore(r)
	if err != nil {
		return core.Record{}, err
	}
	defer unlock()
	return store.Get(key)
}

type productRequest struct {
	ProductType string `json:"productType"`
	Audience    string `json:"audience"`
	PriceRange  string `json:"priceRange"`
	Features    string `json:"features"`

	// Stage adds the generated product to the session as a pending create.
	Stage bool `json:"stage"`
}

func (p productRequest) brief() textgen.ProductBrief {
	return textgen.ProductBrief{
		ProductType: strings.TrimSpace(p.ProductType),
		Audience:    strings.TrimSpace(p.Audience),
		PriceRange:  strings.TrimSpace(p.PriceRange),
		Features:    strings.TrimSpace(p.Features),
	}
}

type generatedView struct {
	ProductType string       `json:"productType"`
	Product     *productView `json:"product,omitempty"`
	Staged      bool         `json:"staged"`
	Error       string       `json:"error,omitempty"`
	Code        string       `json:"code,omitempty"`
}

// handleGenerateProduct drafts one product from a brief. Without staging,
// the dashboard gets the draft in a new-product editor for review.
func (s *Server) handleGenerateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
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
		req = productRequest{
			ProductType: form.Get("productType"),
			Audience:    form.Get("audience"),
			PriceRange:  form.Get("priceRange"),
			Features:    form.Get("features"),
			Stage:       formBool(form, "stage"),
		}
	}

	brief := req.brief()
	rec, err := s.writer.GenerateProduct(r.Context(), brief)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	view := generatedView{ProductType: brief.ProductType}
	if req.Stage {
		staged, err := stage(r, []core.Record{rec})
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		if staged[0].err != nil {
			s.respondError(w, r, staged[0].err)
			return
		}
		rec = staged[0].rec
		view.Staged = true
	}
	if isHTMX(r) {
		if view.Staged {
			s.respondSessionTable(w, r, "Generated and staged "+rec.Name+".", nil)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		templates.Editor(s.editorForm(rec)).Render(r.Context(), w)
		return
	}
	pv := viewOf(rec)
	view.Product = &pv

	status := http.StatusOK
	if view.Staged {
		status = http.StatusCreated
	}
	writeJSON(w, status, view)
}

type batchRequest struct {
	ProductTypes []string `json:"productTypes"`
	Audience     string   `json:"audience"`
	PriceRange   string   `json:"priceRange"`
	Features     string   `json:"features"`
	Stage        bool     `json:"stage"`
}

// handleGenerateBatch drafts one product per type concurrently. Each item
// succeeds or fails on its own.
func (s *Server) handleGenerateBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
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
		req = batchRequest{
			ProductTypes: strings.Split(form.Get("productTypes"), "\n"),
			Audience:     form.Get("audience"),
			PriceRange:   form.Get("priceRange"),
			Features:     form.Get("features"),
			Stage:        formBool(form, "stage"),
		}
	}

	var types []string
	for _, t := range req.ProductTypes {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, t)
		}
	}
	switch {
	case len(types) == 0:
		s.respondError(w, r, &core.ValidationError{Violations: core.Violations{"productTypes": "is required"}})
		return
	case len(types) > maxBatchTypes:
		s.respondError(w, r, &core.ValidationError{Violations: core.Violations{"productTypes": "must list at most 20 types"}})
		return
	}

	brief := productRequest{Audience: req.Audience, PriceRange: req.PriceRange, Features: req.Features}.brief()
	items := s.writer.GenerateBatch(r.Context(), types, brief)

	views := make([]generatedView, len(items))
	var ok []int
	var records []core.Record
	for i, it := range items {
		views[i].ProductType = it.ProductType
		if it.Err != nil {
			msg := core.MapError(it.Err)
			views[i].Error, views[i].Code = msg.Message, msg.Code
			continue
		}
		ok = append(ok, i)
		records = append(records, it.Record)
	}

	if req.Stage && len(records) > 0 {
		staged, err := stage(r, records)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		for j, i := range ok {
			if staged[j].err != nil {
				msg := core.MapError(staged[j].err)
				views[i].Error, views[i].Code = msg.Message, msg.Code
				continue
			}
			records[j] = staged[j].rec
			views[i].Staged = true
		}
	}
	for j, i := range ok {
		if views[i].Error != "" {
			continue
		}
		pv := viewOf(records[j])
		views[i].Product = &pv
	}

	if isHTMX(r) {
		s.respondBatchHTML(w, r, views, req.Stage)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": views})
}

// respondBatchHTML reports a batch on the dashboard: the refreshed table
// when products were staged, otherwise just the notice.
func (s *Server) respondBatchHTML(w http.ResponseWriter, r *http.Request, views []generatedView, staged bool) {
	var (
		done    int
		details []string
	)
	for _, v := range views {
		if v.Error != "" {
			details = append(details, v.ProductType+": "+v.Error)
			continue
		}
		done++
	}
	verb := "Generated"
	if staged {
		verb = "Generated and staged"
	}
	msg := fmt.Sprintf("%s %d of %d products.", verb, done, len(views))
	if staged {
		s.respondSessionTable(w, r, msg, details)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	templates.Flash(msg, details).Render(r.Context(), w)
}

type stageResult struct {
	rec core.Record
	err error
}

// stage creates records in the caller's session. The error is set only
// when the session has nothing loaded.
func stage(r *http.Request, records []core.Record) ([]stageResult, error) {
	store, unlock, err := lockedStore(r)
	if err != nil {
		return nil, err
	}
	defer unlock()

	out := make([]stageResult, len(records))
	for i, rec := range records {
		out[i].rec, out[i].err = store.Create(rec)
	}
	return out, nil
}
