package session

import (
	"log/slog"
	"sync"
)

// Blacklist is the set of user IDs whose messages are dropped before
// dispatch and who are excluded from broadcasts. Managed through the
// admin API.
type Blacklist struct {
	mu      sync.RWMutex
	blocked map[string]struct{}
}

// NewBlacklist creates an empty blacklist.
func NewBlacklist() *Blacklist {
	return &Blacklist{blocked: make(map[string]struct{})}
}

// Add blocks a user.
func (b *Blacklist) Add(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blocked[userID] = struct{}{}
	slog.Info("user blacklisted", "user_id", userID)
}

// Remove unblocks a user.
func (b *Blacklist) Remove(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blocked, userID)
	slog.Info("user removed from blacklist", "user_id", userID)
}

// Contains reports whether a user is blocked.
func (b *Blacklist) Contains(userID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.blocked[userID]
	return ok
}
