// Package application assembles the runtime dependencies shared by the web
// server and the command-line tool: the sheet backend, the text generator and
// the optional audit database.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/JonMunkholm/shopsheet/internal/config"
	"github.com/JonMunkholm/shopsheet/internal/core"
	db "github.com/JonMunkholm/shopsheet/internal/database"
	"github.com/JonMunkholm/shopsheet/internal/sheets"
	"github.com/JonMunkholm/shopsheet/internal/textgen"
	"github.com/jackc/pgx/v5/pgxpool"
	"google.golang.org/api/option"
)

// App holds the wired dependencies. Pool and AuditLog are nil when no
// database is configured.
type App struct {
	Config   *config.Config
	Sheets   core.SheetClient
	Writer   *textgen.Writer
	Limiter  *textgen.Limiter
	Pool     *pgxpool.Pool
	AuditLog *core.AuditLog
}

// New builds every dependency named by cfg. On error anything already
// opened is closed.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	client, err := NewSheetClient(ctx, &cfg.Sheets)
	if err != nil {
		return nil, err
	}
	app.Sheets = client

	completer, err := NewCompleter(ctx, &cfg.TextGen)
	if err != nil {
		return nil, err
	}
	app.Limiter = textgen.NewLimiter(cfg.TextGen.MaxConcurrent, cfg.TextGen.MaxWait)
	app.Writer = textgen.NewWriter(completer, textgen.WithLimiter(app.Limiter))

	if cfg.Database.Enabled() {
		pool, err := OpenPool(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := db.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		app.Pool = pool
		app.AuditLog = core.NewAuditLog(pool)
	}

	return app, nil
}

// AuditSink returns the audit log, or nil when there is none. The nil
// interface keeps stores from logging into a nil pointer.
func (a *App) AuditSink() core.AuditSink {
	if a.AuditLog == nil {
		return nil
	}
	return a.AuditLog
}

// StartBackground runs the audit retention job until ctx is cancelled. It
// does nothing without a database.
func (a *App) StartBackground(ctx context.Context) {
	if a.AuditLog == nil {
		return
	}
	go core.StartRetentionScheduler(ctx, a.AuditLog, core.RetentionConfig{
		Retention:     a.Config.Audit.Retention,
		CheckInterval: a.Config.Audit.CheckInterval,
	})
}

// Close releases the database pool.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}

// NewSheetClient returns the backend selected by cfg.Backend. The memory
// backend is seeded from cfg.SeedFile into worksheet 0 of cfg.DefaultURL.
func NewSheetClient(ctx context.Context, cfg *config.SheetsConfig) (core.SheetClient, error) {
	switch cfg.Backend {
	case "memory":
		mem := sheets.NewMemory()
		if cfg.SeedFile == "" {
			return mem, nil
		}
		f, err := os.Open(cfg.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("open seed file: %w", err)
		}
		defer f.Close()
		if err := mem.SeedCSV(core.SheetRef{URL: cfg.DefaultURL}, f); err != nil {
			return nil, err
		}
		slog.Info("memory sheet seeded", "file", cfg.SeedFile, "url", cfg.DefaultURL)
		return mem, nil

	case "google", "":
		opts := []option.ClientOption{option.WithScopes(sheets.Scope)}
		switch {
		case cfg.CredentialsJSON != "":
			opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
		case cfg.CredentialsFile != "":
			opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		}
		return sheets.NewGoogle(ctx, opts...)
	}
	return nil, fmt.Errorf("unknown sheets backend %q", cfg.Backend)
}

// NewCompleter returns the language model backend for cfg.Provider, or
// textgen.Disabled when the provider has no key.
func NewCompleter(ctx context.Context, cfg *config.TextGenConfig) (textgen.Completer, error) {
	if !cfg.Enabled() {
		return textgen.Disabled{}, nil
	}
	switch cfg.Provider {
	case "gemini":
		g, err := textgen.NewGemini(ctx, textgen.GeminiConfig{
			APIKey: cfg.GeminiKey,
			Model:  cfg.GeminiModel,
		})
		if errors.Is(err, textgen.ErrNotConfigured) {
			return textgen.Disabled{}, nil
		}
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return textgen.NewOpenAI(textgen.OpenAIConfig{
			APIKey:  cfg.OpenAIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.Timeout,
		}), nil
	}
}

// OpenPool connects to PostgreSQL with the pool limits from cfg and checks
// the connection.
func OpenPool(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}
