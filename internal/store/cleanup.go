package store

import (
	"context"
	"log/slog"
	"time"
)

// StartCleanupWorker runs a background goroutine that periodically removes
// conversation history older than the retention window. It runs in its own
// failure domain: a failed sweep is logged and retried next interval.
func StartCleanupWorker(ctx context.Context, repo Repository, retention, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("history cleanup worker started", "interval", interval, "retention", retention)

		for {
			select {
			case <-ticker.C:
				deleted, err := repo.CleanupOldHistories(ctx, retention)
				if err != nil {
					slog.Error("history cleanup failed", "error", err)
					continue
				}
				if deleted > 0 {
					slog.Info("history cleanup completed", "deleted", deleted)
				}
			case <-ctx.Done():
				slog.Info("history cleanup worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
