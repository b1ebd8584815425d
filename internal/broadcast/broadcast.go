// Package broadcast delivers scheduled messages from the flow sheet to
// every known active user, at most once per (broadcast, user) pair.
package broadcast

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/solvia-digital/whatsflow/internal/domain"
	"github.com/solvia-digital/whatsflow/internal/flows"
	"github.com/solvia-digital/whatsflow/internal/session"
	"github.com/solvia-digital/whatsflow/internal/store"
	"github.com/solvia-digital/whatsflow/internal/transport"
)

// Deps are the service's collaborators.
type Deps struct {
	Flows     flows.Source
	Tracker   *session.Tracker
	Blacklist *session.Blacklist
	Repo      store.Repository
	Transport transport.Transport
}

// Service periodically checks the schedule and delivers due broadcasts.
// Recipients are the users the tracker has ever seen, minus inactive and
// blacklisted ones; the store ledger makes delivery idempotent across
// checks and restarts.
type Service struct {
	deps     Deps
	interval time.Duration
	now      func() time.Time

	mu        sync.Mutex
	running   bool
	parent    context.Context
	cancel    context.CancelFunc
	lastCheck *time.Time
}

// NewService creates a broadcast service checking every interval.
func NewService(deps Deps, interval time.Duration) *Service {
	return &Service{
		deps:     deps,
		interval: interval,
		now:      time.Now,
	}
}

// SetNowFunc overrides the clock. Test hook.
func (s *Service) SetNowFunc(now func() time.Time) {
	s.now = now
}

// Start launches the periodic check worker. Calling Start on a running
// service is a no-op.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	s.parent = ctx
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	go s.loop(ctx)
	slog.Info("broadcast worker started", "interval", s.interval)
}

// Stop halts the worker. Safe to call on a stopped service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.cancel()
	s.running = false
	slog.Info("broadcast worker stopped")
}

// Restart stops and restarts the worker under the context it was originally
// started with, forcing a fresh schedule fetch on the next tick. A service
// that was never started stays stopped.
func (s *Service) Restart() {
	s.mu.Lock()
	parent := s.parent
	s.mu.Unlock()
	if parent == nil {
		return
	}
	s.Stop()
	s.Start(parent)
}

func (s *Service) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.CheckNow(ctx); err != nil {
				slog.Error("broadcast check failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// CheckNow runs one delivery pass immediately and returns the number of
// deliveries made. Per-recipient failures are logged and skipped so one
// broken send cannot stall the schedule; the ledger is only written after
// a successful send, so a failed recipient is retried next check.
func (s *Service) CheckNow(ctx context.Context) (int, error) {
	scheduled, err := s.deps.Flows.Scheduled(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	s.mu.Lock()
	s.lastCheck = &now
	s.mu.Unlock()

	delivered := 0
	for _, b := range scheduled {
		if !b.Due(now) {
			continue
		}
		delivered += s.deliver(ctx, b)
	}
	return delivered, nil
}

func (s *Service) deliver(ctx context.Context, b domain.ScheduledMessage) int {
	delivered := 0
	for _, userID := range s.deps.Tracker.Seen() {
		if s.deps.Blacklist != nil && s.deps.Blacklist.Contains(userID) {
			continue
		}
		if !s.deps.Tracker.IsActive(userID) {
			continue
		}

		sent, err := s.deps.Repo.BroadcastSent(ctx, b.ID, userID)
		if err != nil {
			slog.Error("broadcast ledger read failed", "broadcast_id", b.ID, "user_id", userID, "error", err)
			continue
		}
		if sent {
			continue
		}

		var opts *transport.SendOptions
		if b.Media != "" {
			opts = &transport.SendOptions{MediaURL: b.Media}
		}
		if err := s.deps.Transport.SendText(ctx, userID, b.Body, opts); err != nil {
			slog.Error("broadcast send failed", "broadcast_id", b.ID, "user_id", userID, "error", err)
			continue
		}
		if err := s.deps.Repo.MarkBroadcastSent(ctx, b.ID, userID); err != nil {
			slog.Error("broadcast ledger write failed", "broadcast_id", b.ID, "user_id", userID, "error", err)
		}
		delivered++
	}

	if delivered > 0 {
		slog.Info("broadcast delivered", "broadcast_id", b.ID, "recipients", delivered)
	}
	return delivered
}

// Stats summarizes the schedule and the worker state.
func (s *Service) Stats(ctx context.Context) (domain.BroadcastStats, error) {
	scheduled, err := s.deps.Flows.Scheduled(ctx)
	if err != nil {
		return domain.BroadcastStats{}, err
	}
	deliveries, err := s.deps.Repo.BroadcastDeliveries(ctx)
	if err != nil {
		return domain.BroadcastStats{}, err
	}

	now := s.now()
	due := 0
	for _, b := range scheduled {
		if b.Due(now) {
			due++
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.BroadcastStats{
		Scheduled:   len(scheduled),
		Due:         due,
		Deliveries:  deliveries,
		LastCheckAt: s.lastCheck,
		Running:     s.running,
	}, nil
}
