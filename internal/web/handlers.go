package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/shopsheet/internal/core"
	"github.com/JonMunkholm/shopsheet/internal/logging"
	"github.com/JonMunkholm/shopsheet/internal/web/templates"
)

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Len(),
	})
}

// handleDashboard renders the main dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	data := templates.DashboardData{
		DefaultURL: s.cfg.Sheets.DefaultURL,
		Generation: s.cfg.TextGen.Enabled(),
		Statuses:   statusLabels(),
	}

	if store, unlock, err := lockedStore(r); err == nil {
		f := filterFrom(r)
		data.Loaded = true
		data.DefaultURL = store.Ref().URL
		data.Table = tableData(store, core.FilterRecords(store.Records(), f), f)
		unlock()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	templates.Dashboard(data).Render(r.Context(), w)
}

type loadRequest struct {
	URL       string `json:"url"`
	Worksheet int    `json:"worksheet"`
}

// readLoadRequest accepts a JSON body or the dashboard's form post.
func readLoadRequest(w http.ResponseWriter, r *http.Request) (loadRequest, error) {
	var req loadRequest
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		if err := decodeJSON(r, &req); err != nil {
			return req, err
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		if err := r.ParseForm(); err != nil {
			return req, badRequest("invalid form: %v", err)
		}
		req.URL = r.PostForm.Get("url")
		if ws := strings.TrimSpace(r.PostForm.Get("worksheet")); ws != "" {
			n, err := strconv.Atoi(ws)
			if err != nil {
				return req, &core.ValidationError{Violations: core.Violations{"worksheet": "must be a whole number"}}
			}
			req.Worksheet = n
		}
	}

	req.URL = strings.TrimSpace(req.URL)
	v := core.Violations{}
	if req.URL == "" {
		v["url"] = "is required"
	}
	if req.Worksheet < 0 {
		v["worksheet"] = "must not be negative"
	}
	if len(v) > 0 {
		return req, &core.ValidationError{Violations: v}
	}
	return req, nil
}

// handleLoad binds the session to a worksheet and (re)loads it. Loading the
// sheet the session already holds discards its uncommitted edits. A failed
// load leaves the session as it was.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	req, err := readLoadRequest(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	sess := sessionFrom(r.Context())
	sess.mu.Lock()
	defer sess.mu.Unlock()

	ref := core.SheetRef{URL: req.URL, Worksheet: req.Worksheet}
	store := sess.store
	if store == nil || store.Ref() != ref {
		store = s.newStore(sess, ref)
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Sheets.Timeout)
	defer cancel()

	records, err := store.Load(ctx)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	sess.store = store

	logging.FromContext(ctx).Info("sheet loaded",
		"session", sess.ID,
		"sheet", ref.Key(),
		"records", len(records),
	)
	respondCatalog(w, r, store, records, core.Filter{}, http.StatusOK)
}

func (s *Server) newStore(sess *Session, ref core.SheetRef) *core.RecordStore {
	return core.NewRecordStore(s.sheets, ref,
		core.WithAuditSink(s.audit),
		core.WithLogger(logging.WithFields(context.Background(), "session", sess.ID)),
	)
}

// outcomeView reports one commit operation.
type outcomeView struct {
	Op       core.OpKind `json:"op"`
	Key      string      `json:"key"`
	RecordID string      `json:"recordId,omitempty"`
	RowIndex int         `json:"rowIndex"`
	OK       bool        `json:"ok"`
	Error    string      `json:"error,omitempty"`
	Code     string      `json:"code,omitempty"`
}

type commitView struct {
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Reloaded  bool          `json:"reloaded"`
	Outcomes  []outcomeView `json:"outcomes"`
	Catalog   *catalogView  `json:"catalog,omitempty"`
}

func newCommitView(res core.CommitResult) commitView {
	out := commitView{
		Succeeded: res.Succeeded(),
		Failed:    len(res.Failed()),
		Reloaded:  res.Reloaded,
		Outcomes:  make([]outcomeView, 0, len(res.Outcomes)),
	}
	for _, o := range res.Outcomes {
		ov := outcomeView{
			Op:       o.Op,
			Key:      o.Key(),
			RecordID: o.RecordID,
			RowIndex: o.RowIndex,
			OK:       o.OK(),
		}
		if o.Err != nil {
			msg := core.MapError(o.Err)
			ov.Error = msg.Message
			ov.Code = msg.Code
		}
		out.Outcomes = append(out.Outcomes, ov)
	}
	return out
}

// handleCommit pushes the session's staged edits to the sheet. A partial
// failure answers 207 with every outcome; the failed operations stay staged.
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	store, unlock, err := lockedStore(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Sheets.Timeout)
	defer cancel()

	res, err := store.Commit(ctx)
	var partial *core.PartialCommitError
	switch {
	case err == nil:
	case errors.As(err, &partial):
		if isHTMX(r) {
			s.respondError(w, r, err)
			return
		}
		view := newCommitView(res)
		cat := newCatalogView(store, store.Records())
		view.Catalog = &cat
		writeJSON(w, http.StatusMultiStatus, view)
		return
	default:
		s.respondError(w, r, err)
		return
	}

	if isHTMX(r) {
		respondCatalog(w, r, store, store.Records(), core.Filter{}, http.StatusOK)
		return
	}
	view := newCommitView(res)
	cat := newCatalogView(store, store.Records())
	view.Catalog = &cat
	writeJSON(w, http.StatusOK, view)
}
