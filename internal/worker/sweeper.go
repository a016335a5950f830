package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/dispute-engine/internal/service"
)

const sweepBatchSize = 100

// Sweeper periodically expires overdue settlement offers and escalates
// stale open disputes. Both operations are optimizations; reads remain
// correct without the sweep.
type Sweeper struct {
	settlements   *service.SettlementService
	disputes      *service.DisputeService
	interval      time.Duration
	escalateAfter time.Duration
	logger        *zap.Logger
}

// NewSweeper constructs a sweeper.
func NewSweeper(settlements *service.SettlementService, disputes *service.DisputeService, interval, escalateAfter time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		settlements:   settlements,
		disputes:      disputes,
		interval:      interval,
		escalateAfter: escalateAfter,
		logger:        logger,
	}
}

// Run loops until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sweep worker started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweep worker stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	expired, err := s.settlements.ExpireDueOffers(ctx, sweepBatchSize)
	if err != nil {
		s.logger.Error("offer expiry sweep failed", zap.Error(err))
	} else if expired > 0 {
		s.logger.Info("expired overdue offers", zap.Int("count", expired))
	}

	cutoff := time.Now().Add(-s.escalateAfter)
	escalated, err := s.disputes.EscalateStale(ctx, cutoff, sweepBatchSize)
	if err != nil {
		s.logger.Error("stale dispute escalation failed", zap.Error(err))
	} else if escalated > 0 {
		s.logger.Info("escalated stale disputes", zap.Int("count", escalated))
	}
}
