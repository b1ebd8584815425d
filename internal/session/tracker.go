package session

import (
	"log/slog"
	"sync"
	"time"
)

// activityRecord is the per-user liveness state.
type activityRecord struct {
	lastSeenAt time.Time
	active     bool
}

// TouchResult reports the outcome of recording an inbound message.
type TouchResult struct {
	// Expired is true when the gap since the previous message exceeded the
	// session timeout. The caller must run the session-reset sequence before
	// processing the message content.
	Expired bool
}

// Tracker maintains per-user last-seen timestamps and the active flag that
// gates every automated outbound send.
type Tracker struct {
	mu      sync.RWMutex
	records map[string]*activityRecord

	sessionTimeout  time.Duration
	responseTimeout time.Duration

	now   func() time.Time
	sched Scheduler
}

// NewTracker creates a tracker with the given inactivity windows.
func NewTracker(sessionTimeout, responseTimeout time.Duration, sched Scheduler) *Tracker {
	if sched == nil {
		sched = TimerScheduler{}
	}
	return &Tracker{
		records:         make(map[string]*activityRecord),
		sessionTimeout:  sessionTimeout,
		responseTimeout: responseTimeout,
		now:             time.Now,
		sched:           sched,
	}
}

// SetNowFunc overrides the clock. Test hook.
func (t *Tracker) SetNowFunc(now func() time.Time) {
	t.now = now
}

// Touch records an inbound message from userID. It updates lastSeenAt,
// unconditionally marks the user active, and reports whether the previous
// session expired. A first-ever message is never expired.
func (t *Tracker) Touch(userID string) TouchResult {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[userID]
	if !ok {
		t.records[userID] = &activityRecord{lastSeenAt: now, active: true}
		return TouchResult{}
	}

	expired := now.Sub(rec.lastSeenAt) > t.sessionTimeout
	rec.lastSeenAt = now
	rec.active = true
	return TouchResult{Expired: expired}
}

// ScheduleLivenessCheck arranges a one-shot check that marks userID inactive
// if no newer message has arrived when it fires. The check compares against
// the lastSeenAt snapshot taken now, so a message received in the interim
// turns the firing into a no-op; rapid messages each schedule their own
// check and only the latest one can ever flip the flag.
func (t *Tracker) ScheduleLivenessCheck(userID string) {
	t.mu.RLock()
	rec, ok := t.records[userID]
	if !ok {
		t.mu.RUnlock()
		return
	}
	seenAt := rec.lastSeenAt
	t.mu.RUnlock()

	t.sched.AfterFunc(t.responseTimeout, func() {
		t.deactivateIfIdle(userID, seenAt)
	})
}

// deactivateIfIdle flips the active flag iff lastSeenAt has not advanced
// past the scheduling-time snapshot. Reads current state at fire time.
func (t *Tracker) deactivateIfIdle(userID string, seenAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[userID]
	if !ok || rec.lastSeenAt.After(seenAt) {
		return
	}
	if rec.active {
		rec.active = false
		slog.Info("user marked inactive, automated sends paused", "user_id", userID)
	}
}

// IsActive reports whether automated sends to userID are allowed.
// Unknown users are not active: they have never started a session.
func (t *Tracker) IsActive(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.records[userID]
	return ok && rec.active
}

// LastSeen returns the recorded last-seen time for userID.
func (t *Tracker) LastSeen(userID string) (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.records[userID]
	if !ok {
		return time.Time{}, false
	}
	return rec.lastSeenAt, true
}

// Seen returns every user ID with an activity record. Broadcast recipients
// are drawn from this set.
func (t *Tracker) Seen() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	users := make([]string, 0, len(t.records))
	for id := range t.records {
		users = append(users, id)
	}
	return users
}
