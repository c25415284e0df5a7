package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JonMunkholm/shopsheet/internal/application"
	"github.com/JonMunkholm/shopsheet/internal/config"
	"github.com/JonMunkholm/shopsheet/internal/logging"
	"github.com/JonMunkholm/shopsheet/internal/web"
	"github.com/joho/godotenv"
)

// sweepInterval is how often idle sessions are discarded.
const sweepInterval = time.Minute

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"sheets_backend", cfg.Sheets.Backend,
		"textgen_provider", cfg.TextGen.Provider,
		"textgen_enabled", cfg.TextGen.Enabled(),
		"audit_enabled", cfg.Database.Enabled(),
		"rate_limit_enabled", cfg.Rate.Enabled,
	)
	slog.Debug("configuration", "config", cfg.String())

	ctx := context.Background()
	app, err := application.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	deps := web.Deps{
		Sheets: app.Sheets,
		Writer: app.Writer,
		Audit:  app.AuditSink(),
	}
	if app.AuditLog != nil {
		deps.AuditLog = app.AuditLog
	}
	server := web.NewServer(cfg, deps)

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	server.Sessions().StartSweeper(jobCtx, sweepInterval)
	app.StartBackground(jobCtx)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		// Stop background jobs
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for in-flight generation calls (with timeout)
		if status := app.Limiter.Status(); status.Active > 0 {
			slog.Info("waiting for generation calls to complete", "active", status.Active)
			if err := app.Limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("generation calls did not complete in time", "error", err)
			} else {
				slog.Info("all generation calls completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(cfg.Server.Addr()); err != nil {
		slog.Info("server stopped", "error", err)
	}
}
