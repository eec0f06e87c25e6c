package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/ordersvc/commander/internal/infra/storage"
	"github.com/ordersvc/commander/internal/metrics"
)

// Sweeper periodically removes orphaned PENDING records whose owner died
// without completing or releasing them, and garbage-collects terminal records
// past the retention window.
type Sweeper struct {
	cfg     Config
	records storage.OperationRecordRepository
	log     *slog.Logger
}

// NewSweeper creates a sweeper.
func NewSweeper(cfg Config, records storage.OperationRecordRepository, log *slog.Logger) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{
		cfg:     cfg.withDefaults(),
		records: records,
		log:     log.With("component", "sweeper"),
	}
}

// Run sweeps on the configured interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one maintenance pass. Failures are logged, never fatal: the
// next tick tries again.
func (s *Sweeper) Sweep(ctx context.Context) {
	stale, err := s.records.DeleteStalePending(ctx, s.cfg.PendingTTL)
	if err != nil {
		s.log.Warn("failed to delete stale pending records", "error", err)
	} else if stale > 0 {
		metrics.RecordsSweptTotal.WithLabelValues("stale_pending").Add(float64(stale))
		s.log.Info("deleted stale pending records", "count", stale)
	}

	purged, err := s.records.PurgeTerminal(ctx, s.cfg.Retention)
	if err != nil {
		s.log.Warn("failed to purge terminal records", "error", err)
	} else if purged > 0 {
		metrics.RecordsSweptTotal.WithLabelValues("terminal").Add(float64(purged))
		s.log.Info("purged terminal records", "count", purged)
	}
}
