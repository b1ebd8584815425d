package domain

import "time"

// ScheduledMessage is one broadcast entry from the schedule sheet.
// A message becomes due once SendAt has passed; the store ledger guarantees
// each (broadcast, user) pair is delivered at most once.
type ScheduledMessage struct {
	ID     string    `json:"id"`
	Body   string    `json:"body"`
	Media  string    `json:"media,omitempty"`
	SendAt time.Time `json:"send_at"`
}

// Due reports whether the broadcast should be delivered at the given time.
func (s ScheduledMessage) Due(now time.Time) bool {
	return !s.SendAt.After(now)
}

// BroadcastStats summarizes the scheduled-broadcast subsystem.
type BroadcastStats struct {
	Scheduled   int        `json:"scheduled"`
	Due         int        `json:"due"`
	Deliveries  int64      `json:"deliveries"`
	LastCheckAt *time.Time `json:"last_check_at,omitempty"`
	Running     bool       `json:"running"`
}
