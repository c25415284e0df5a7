package core

// scheduler.go provides background job scheduling for maintenance tasks.
//
// Currently implements audit retention: entries older than the retention
// window are purged once at startup and then on every tick. The scheduler is
// long-running and context-aware for graceful shutdown. A failed purge is
// logged and retried on the next tick.

import (
	"context"
	"log/slog"
	"time"
)

// RetentionConfig holds configuration for the retention scheduler.
// Zero values fall back to the defaults below.
type RetentionConfig struct {
	Retention     time.Duration // Age after which entries are purged (default: 90 days)
	CheckInterval time.Duration // How often to run (default: 24h)
}

const (
	defaultRetention     = 90 * 24 * time.Hour
	defaultCheckInterval = 24 * time.Hour
)

func (c RetentionConfig) withDefaults() RetentionConfig {
	if c.Retention <= 0 {
		c.Retention = defaultRetention
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = defaultCheckInterval
	}
	return c
}

// AuditPurger deletes audit entries older than a retention window.
type AuditPurger interface {
	PurgeOlderThan(ctx context.Context, retention time.Duration) (int64, error)
}

// StartRetentionScheduler purges old audit entries immediately, then every
// CheckInterval, until ctx is cancelled. It blocks; run it in a goroutine.
func StartRetentionScheduler(ctx context.Context, purger AuditPurger, cfg RetentionConfig) {
	cfg = cfg.withDefaults()
	slog.Info("retention scheduler started",
		"retention_days", int(cfg.Retention.Hours()/24),
		"check_interval", cfg.CheckInterval.String(),
	)

	runRetentionJob(ctx, purger, cfg)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("retention scheduler stopped")
			return
		case <-ticker.C:
			runRetentionJob(ctx, purger, cfg)
		}
	}
}

// runRetentionJob performs one purge cycle.
func runRetentionJob(ctx context.Context, purger AuditPurger, cfg RetentionConfig) {
	start := time.Now()
	purged, err := purger.PurgeOlderThan(ctx, cfg.Retention)
	if err != nil {
		slog.Error("audit purge failed", "error", err)
		return
	}
	slog.Info("purged audit log entries",
		"entries_purged", purged,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
