// Package web provides the HTTP server and handlers for the catalog UI and API.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/JonMunkholm/shopsheet/internal/config"
	"github.com/JonMunkholm/shopsheet/internal/core"
	"github.com/JonMunkholm/shopsheet/internal/textgen"
	mw "github.com/JonMunkholm/shopsheet/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"
)

// Generator produces product copy for the generation routes.
type Generator interface {
	GenerateDescription(ctx context.Context, productName string, hints []string) (string, error)
	ImproveDescription(ctx context.Context, rec core.Record) (string, error)
	GenerateProduct(ctx context.Context, brief textgen.ProductBrief) (core.Record, error)
	GenerateBatch(ctx context.Context, types []string, brief textgen.ProductBrief) []textgen.BatchItem
}

// AuditReader serves the audit trail endpoint.
type AuditReader interface {
	GetAuditLog(ctx context.Context, filter core.AuditLogFilter) ([]core.AuditEntry, error)
}

// Deps are the collaborators the server hands to each session's store.
type Deps struct {
	Sheets core.SheetClient
	Writer Generator

	// Audit and AuditLog are nil when no database is configured.
	Audit    core.AuditSink
	AuditLog AuditReader
}

// Server is the HTTP server for the catalog application.
type Server struct {
	cfg      *config.Config
	sheets   core.SheetClient
	writer   Generator
	audit    core.AuditSink
	auditLog AuditReader
	sessions *Sessions
	router   *chi.Mux
	server   *http.Server
}

// NewServer creates a new Server instance.
func NewServer(cfg *config.Config, deps Deps) *Server {
	writer := deps.Writer
	if writer == nil {
		writer = textgen.NewWriter(textgen.Disabled{})
	}
	s := &Server{
		cfg:      cfg,
		sheets:   deps.Sheets,
		writer:   writer,
		audit:    deps.Audit,
		auditLog: deps.AuditLog,
		sessions: NewSessions(cfg.Session.IdleTimeout, cfg.Session.MaxSessions),
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(s.securityHeaders())

	if s.cfg.Rate.Enabled {
		s.router.Use(httprate.Limit(
			s.cfg.Rate.RequestsPerMinute,
			time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(rateLimited),
		))
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Group(func(r chi.Router) {
		r.Use(s.sessionMiddleware)
		r.Get("/", s.handleDashboard)
		r.Get("/products/new", s.handleNewProductForm)
		r.Get("/products/generate", s.handleGenerateForms)
		r.Get("/products/{id}/edit", s.handleEditProductForm)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(&s.cfg.Security))
		r.Use(s.sessionMiddleware)

		r.Post("/load", s.handleLoad)
		r.Post("/commit", s.handleCommit)

		r.Get("/products", s.handleListProducts)
		r.Post("/products", s.handleCreateProduct)
		r.Post("/products/bulk/status", s.handleBulkStatus)
		r.Post("/products/bulk/price", s.handleBulkPrice)
		r.Get("/products/{id}", s.handleGetProduct)
		r.Patch("/products/{id}", s.handleUpdateProduct)
		r.Delete("/products/{id}", s.handleDeleteProduct)

		r.Get("/summary", s.handleSummary)
		r.Get("/export.csv", s.handleExport)
		r.Post("/import", s.handleImport)
		r.Get("/audit", s.handleAudit)

		r.Route("/generate", func(r chi.Router) {
			if s.cfg.Rate.Enabled {
				r.Use(httprate.Limit(
					s.cfg.Rate.GenerateLimit,
					time.Minute,
					httprate.WithKeyFuncs(httprate.KeyByIP),
					httprate.WithLimitHandler(rateLimited),
				))
			}
			r.Post("/description", s.handleGenerateDescription)
			r.Post("/product", s.handleGenerateProduct)
			r.Post("/batch", s.handleGenerateBatch)
		})
	})
}

// securityHeaders applies unrolled/secure. A rejected host has already been
// answered by secure itself.
func (s *Server) securityHeaders() func(http.Handler) http.Handler {
	sec := s.cfg.Security
	opts := secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		AllowedHosts:       sec.AllowedHosts,
		SSLRedirect:        s.cfg.Session.SecureCookie,
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:      sec.DevMode,
	}
	if sec.EnableCSP {
		opts.ContentSecurityPolicy = "default-src 'self'; script-src 'self' https://unpkg.com; " +
			"style-src 'self' 'unsafe-inline'; img-src 'self' data:; font-src 'self'"
	}
	sm := secure.New(opts)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := sm.Process(w, r); err != nil {
				slog.Warn("secure headers blocked request", "path", r.URL.Path, "host", r.Host, "error", err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimited answers requests over the httprate limit.
func rateLimited(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", "60")
	msg := core.MapError(errRateLimited)
	if strings.HasPrefix(r.URL.Path, "/api/") || wantsJSON(r) {
		respondErrorJSON(w, msg, nil, http.StatusTooManyRequests)
		return
	}
	respondErrorHTML(w, msg, http.StatusTooManyRequests)
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Sessions exposes the session table so main can run its sweeper.
func (s *Server) Sessions() *Sessions {
	return s.sessions
}

// writeJSON encodes v as JSON and writes it to w with the given status.
// Encoding errors are logged since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
