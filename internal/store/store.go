// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/solvia-digital/whatsflow/internal/domain"
)

// Repository persists conversation history and the broadcast delivery
// ledger. The dispatch pipeline treats history writes as fire-and-forget:
// failures are logged, never surfaced to the user.
type Repository interface {
	// AppendMessage records one conversation turn for a user.
	AppendMessage(ctx context.Context, userID, role, content string) error

	// ClearHistory removes all history for a user (session reset).
	ClearHistory(ctx context.Context, userID string) error

	// RecentMessages returns up to n most recent turns in chronological order.
	RecentMessages(ctx context.Context, userID string, n int) ([]domain.StoredMessage, error)

	// HistoryStats summarizes the stored history.
	HistoryStats(ctx context.Context) (domain.HistoryStats, error)

	// CleanupOldHistories removes turns older than the retention window and
	// returns the number of rows deleted.
	CleanupOldHistories(ctx context.Context, retention time.Duration) (int64, error)

	// MarkBroadcastSent records a broadcast delivery to a user.
	MarkBroadcastSent(ctx context.Context, broadcastID, userID string) error

	// BroadcastSent reports whether a broadcast was already delivered to a user.
	BroadcastSent(ctx context.Context, broadcastID, userID string) (bool, error)

	// BroadcastDeliveries returns the total number of recorded deliveries.
	BroadcastDeliveries(ctx context.Context) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
