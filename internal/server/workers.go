package server

import (
	"context"
	"time"

	"github.com/ssd-technologies/cumulus/internal/notify"
)

// StartWorkers launches all background goroutines. Call with a cancellable
// context for graceful shutdown.
func (s *Server) StartWorkers(ctx context.Context) {
	if s.reconcileEvery > 0 {
		go s.every(ctx, s.reconcileEvery, s.reconcileQuota)
	}
	if s.sweepEvery > 0 {
		go s.every(ctx, s.sweepEvery, s.sweepBlobs)
	}
	if s.uploads != nil {
		go s.every(ctx, time.Minute, s.cleanupLimiter)
	}
}

func (s *Server) every(ctx context.Context, d time.Duration, fn func(context.Context)) {
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn(ctx)
		}
	}
}

// --- Quota reconcile worker ---

// reconcileQuota rebuilds ledger entries that drifted from the live file
// set.
func (s *Server) reconcileQuota(context.Context) {
	fixes := s.store.ReconcileQuota()
	for _, f := range fixes {
		s.log.Warn("[worker] quota drift corrected",
			"owner_id", f.OwnerID, "recorded", f.Recorded, "actual", f.Actual)
		if f.OwnerID == s.owner {
			s.publish(notify.QuotaChanged, s.owner, nil)
		}
	}
}

// --- Orphan blob sweeper ---

// sweepBlobs removes blobs left behind by failed blob deletes.
func (s *Server) sweepBlobs(ctx context.Context) {
	n, err := s.store.SweepOrphanBlobs(ctx)
	if err != nil {
		s.log.Error("[worker] sweep orphan blobs", "error", err)
	}
	if n > 0 {
		s.log.Info("[worker] swept orphan blobs", "count", n)
	}
}

// --- Rate limiter cleanup ---

func (s *Server) cleanupLimiter(context.Context) {
	if n := s.uploads.Cleanup(); n > 0 {
		s.log.Debug("[worker] dropped idle rate limit windows", "count", n)
	}
}
