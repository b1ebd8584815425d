package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/solvia-digital/whatsflow/internal/domain"
	"github.com/solvia-digital/whatsflow/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_user ON messages(user_id, id);
	CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at);

	CREATE TABLE IF NOT EXISTS broadcast_deliveries (
		broadcast_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		sent_at INTEGER NOT NULL,
		PRIMARY KEY (broadcast_id, user_id)
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// AppendMessage records one conversation turn. Retries with exponential
// backoff on SQLite concurrency errors since appends race with the
// cleanup sweep.
func (s *SQLiteStore) AppendMessage(ctx context.Context, userID, role, content string) error {
	maxRetries := 3
	baseDelay := 50 * time.Millisecond

	query := `INSERT INTO messages (user_id, role, content, created_at) VALUES (?, ?, ?, ?)`
	for i := 0; i < maxRetries; i++ {
		_, err := s.db.ExecContext(ctx, query, userID, role, content, time.Now().Unix())
		if err == nil {
			return nil
		}
		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			time.Sleep(baseDelay * time.Duration(1<<i))
			continue
		}
		return fmt.Errorf("append message for %s: %w", userID, err)
	}
	return nil
}

// ClearHistory removes all history for a user.
func (s *SQLiteStore) ClearHistory(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear history for %s: %w", userID, err)
	}
	return nil
}

// RecentMessages returns up to n most recent turns, oldest first.
func (s *SQLiteStore) RecentMessages(ctx context.Context, userID string, n int) ([]domain.StoredMessage, error) {
	if n <= 0 {
		return nil, nil
	}

	query := `
		SELECT user_id, role, content, created_at
		FROM messages WHERE user_id = ?
		ORDER BY id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, userID, n)
	if err != nil {
		return nil, fmt.Errorf("query recent messages: %w", err)
	}
	defer rows.Close()

	var newestFirst []domain.StoredMessage
	for rows.Next() {
		var m domain.StoredMessage
		var createdAt int64
		if err := rows.Scan(&m.UserID, &m.Role, &m.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		m.CreatedAt = time.Unix(createdAt, 0)
		newestFirst = append(newestFirst, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	// Reverse into chronological order for completion context.
	out := make([]domain.StoredMessage, len(newestFirst))
	for i, m := range newestFirst {
		out[len(out)-1-i] = m
	}
	return out, nil
}

// HistoryStats summarizes the stored history.
func (s *SQLiteStore) HistoryStats(ctx context.Context) (domain.HistoryStats, error) {
	var stats domain.HistoryStats

	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT user_id), COUNT(*), MIN(created_at) FROM messages`)

	var oldest sql.NullInt64
	if err := row.Scan(&stats.Users, &stats.Messages, &oldest); err != nil {
		return domain.HistoryStats{}, fmt.Errorf("scan history stats: %w", err)
	}
	if oldest.Valid {
		ts := time.Unix(oldest.Int64, 0)
		stats.Oldest = &ts
	}
	return stats, nil
}

// CleanupOldHistories removes turns older than the retention window.
func (s *SQLiteStore) CleanupOldHistories(ctx context.Context, retention time.Duration) (int64, error) {
	threshold := time.Now().Add(-retention).Unix()
	result, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE created_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup old histories: %w", err)
	}
	return result.RowsAffected()
}

// MarkBroadcastSent records a broadcast delivery. Re-marking an existing
// delivery is a no-op so the worker can safely retry a sweep.
func (s *SQLiteStore) MarkBroadcastSent(ctx context.Context, broadcastID, userID string) error {
	query := `
		INSERT INTO broadcast_deliveries (broadcast_id, user_id, sent_at)
		VALUES (?, ?, ?)
		ON CONFLICT(broadcast_id, user_id) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, query, broadcastID, userID, time.Now().Unix()); err != nil {
		return fmt.Errorf("mark broadcast sent: %w", err)
	}
	return nil
}

// BroadcastSent reports whether a broadcast already reached a user.
func (s *SQLiteStore) BroadcastSent(ctx context.Context, broadcastID, userID string) (bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM broadcast_deliveries WHERE broadcast_id = ? AND user_id = ?`,
		broadcastID, userID)

	var one int
	err := row.Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query broadcast delivery: %w", err)
	}
	return true, nil
}

// BroadcastDeliveries returns the total number of recorded deliveries.
func (s *SQLiteStore) BroadcastDeliveries(ctx context.Context) (int64, error) {
	var count int64
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM broadcast_deliveries`)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count broadcast deliveries: %w", err)
	}
	return count, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
