package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/JonMunkholm/shopsheet/internal/core"
)

// maxAuditLimit caps one page of audit entries.
const maxAuditLimit = 500

type auditView struct {
	Enabled bool              `json:"enabled"`
	Sheet   string            `json:"sheet,omitempty"`
	Entries []core.AuditEntry `json:"entries"`
}

// handleAudit lists audit entries for the session's sheet, newest first.
// Query parameters: limit, offset, action, from and to (YYYY-MM-DD).
// Without a database the trail is reported as disabled.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditLog == nil {
		writeJSON(w, http.StatusOK, auditView{Entries: []core.AuditEntry{}})
		return
	}

	filter, err := auditFilterFrom(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	store, unlock, err := lockedStore(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	filter.SheetKey = store.Ref().Key()
	unlock()

	entries, err := s.auditLog.GetAuditLog(r.Context(), filter)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if entries == nil {
		entries = []core.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, auditView{Enabled: true, Sheet: filter.SheetKey, Entries: entries})
}

func auditFilterFrom(r *http.Request) (core.AuditLogFilter, error) {
	var f core.AuditLogFilter

	limit, err := parseIntParam(r, "limit", core.DefaultAuditLimit)
	if err != nil {
		return f, err
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}
	offset, err := parseIntParam(r, "offset", 0)
	if err != nil {
		return f, err
	}
	f.Limit, f.Offset = limit, offset
	f.Action = core.AuditAction(strings.TrimSpace(r.URL.Query().Get("action")))

	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse(time.DateOnly, from)
		if err != nil {
			return f, badRequest("from must be a date like 2006-01-02")
		}
		f.StartTime = t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse(time.DateOnly, to)
		if err != nil {
			return f, badRequest("to must be a date like 2006-01-02")
		}
		f.EndTime = t.Add(24*time.Hour - time.Second)
	}
	return f, nil
}
