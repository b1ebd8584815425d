// Package session holds the per-user conversational state for the dispatch
// engine: activity/liveness tracking, pending-asset context and the
// blacklist. All state lives in process memory and is keyed by user ID.
package session

import "time"

// Scheduler arranges one-shot deferred tasks. The production implementation
// wraps time.AfterFunc; tests substitute a fake that fires synchronously.
// Scheduled tasks are fire-and-forget: there is no cancellation, callbacks
// must be idempotent against late or duplicate firings.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func())
}

// TimerScheduler is the time.AfterFunc-backed Scheduler.
type TimerScheduler struct{}

// AfterFunc schedules fn to run on its own goroutine after d.
func (TimerScheduler) AfterFunc(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}
