package session

import (
	"sync"

	"github.com/solvia-digital/whatsflow/internal/domain"
)

// Store holds the per-user SessionContext consumed by the dispatch pipeline.
// The interface exists so the in-memory map can be swapped for a persistent
// or distributed backend without touching pipeline logic.
type Store interface {
	// Get returns the context for userID; an empty context if absent.
	Get(userID string) domain.SessionContext

	// SetPendingAsset records that userID requested the asset category key.
	SetPendingAsset(userID, key string)

	// ClearPendingAsset discards any pending asset request for userID.
	ClearPendingAsset(userID string)
}

// MemoryStore is the process-memory Store implementation.
type MemoryStore struct {
	mu       sync.RWMutex
	contexts map[string]domain.SessionContext
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contexts: make(map[string]domain.SessionContext),
	}
}

// Get returns the context for userID; an empty context if absent.
func (s *MemoryStore) Get(userID string) domain.SessionContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contexts[userID]
}

// SetPendingAsset records a pending asset request.
func (s *MemoryStore) SetPendingAsset(userID, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := s.contexts[userID]
	ctx.PendingAssetKey = key
	s.contexts[userID] = ctx
}

// ClearPendingAsset discards the pending asset request, if any.
func (s *MemoryStore) ClearPendingAsset(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, ok := s.contexts[userID]
	if !ok {
		return
	}
	ctx.PendingAssetKey = ""
	s.contexts[userID] = ctx
}
