package reconcile

import (
	"context"
	"time"
)

const DefaultInterval = time.Minute

// Scheduler runs the reconciler on a fixed cadence.
type Scheduler struct {
	reconciler *Reconciler
	interval   time.Duration
}

func NewScheduler(r *Reconciler, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{reconciler: r, interval: interval}
}

// Start runs one pass immediately and then one per interval until ctx is
// cancelled. It blocks.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.reconciler == nil {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if _, err := s.reconciler.Run(ctx); err != nil && ctx.Err() == nil {
			s.reconciler.logger.Error("Reconciliation pass failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
