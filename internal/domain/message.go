// Package domain contains core domain types for the whatsflow service.
package domain

import (
	"strings"
	"time"
)

// Message represents one inbound chat message from the transport provider.
type Message struct {
	UserID     string    `json:"from"`
	PushName   string    `json:"name,omitempty"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

// NormalizedBody returns the case-folded, trimmed message text used by
// every matching step in the dispatch pipeline.
func (m Message) NormalizedBody() string {
	return strings.ToLower(strings.TrimSpace(m.Body))
}

// StoredMessage is a persisted conversation-history entry.
type StoredMessage struct {
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation roles used in the history store.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// HistoryStats summarizes the conversation-history store.
type HistoryStats struct {
	Users    int64      `json:"users"`
	Messages int64      `json:"messages"`
	Oldest   *time.Time `json:"oldest,omitempty"`
}
