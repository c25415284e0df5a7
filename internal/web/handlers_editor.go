package web

import (
	"net/http"

	"github.com/JonMunkholm/shopsheet/internal/core"
	"github.com/JonMunkholm/shopsheet/internal/textgen"
	"github.com/JonMunkholm/shopsheet/internal/web/templates"
	"github.com/go-chi/chi/v5"
)

// handleNewProductForm renders an empty product editor. New products need
// a loaded sheet to be staged into.
func (s *Server) handleNewProductForm(w http.ResponseWriter, r *http.Request) {
	_, unlock, err := lockedStore(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	templates.Editor(s.editorForm(core.Record{})).Render(r.Context(), w)
}

// handleEditProductForm renders the editor for one record.
func (s *Server) handleEditProductForm(w http.ResponseWriter, r *http.Request) {
	rec, err := s.recordSnapshot(r, chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	templates.Editor(s.editorForm(rec)).Render(r.Context(), w)
}

// handleGenerateForms renders the product generation forms.
func (s *Server) handleGenerateForms(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.TextGen.Enabled() {
		s.respondError(w, r, textgen.ErrNotConfigured)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	templates.GenerateForms().Render(r.Context(), w)
}
