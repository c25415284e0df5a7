// Package admin provides administrative operations on the audit database.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/shopsheet/internal/core"
)

// PurgeTimeout is the maximum duration for a purge.
const PurgeTimeout = 30 * time.Second

// PurgeAudit deletes audit entries older than olderThan and returns how many
// were removed.
func PurgeAudit(ctx context.Context, purger core.AuditPurger, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("retention window must be positive")
	}

	ctx, cancel := context.WithTimeout(ctx, PurgeTimeout)
	defer cancel()

	start := time.Now()
	n, err := purger.PurgeOlderThan(ctx, olderThan)
	if err != nil {
		return 0, fmt.Errorf("purge audit log: %w", err)
	}

	slog.Info("audit log purged",
		"deleted", n,
		"older_than", olderThan.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return n, nil
}
