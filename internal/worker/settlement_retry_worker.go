package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/dispute-engine/internal/bridge"
)

// SettlementRetryWorker redelivers settlement instructions that failed
// on first submission.
type SettlementRetryWorker struct {
	emitter  *bridge.Emitter
	interval time.Duration
	logger   *zap.Logger
}

// NewSettlementRetryWorker constructs the worker.
func NewSettlementRetryWorker(emitter *bridge.Emitter, interval time.Duration, logger *zap.Logger) *SettlementRetryWorker {
	return &SettlementRetryWorker{
		emitter:  emitter,
		interval: interval,
		logger:   logger,
	}
}

// Run loops until the context is cancelled, draining the retry queue
// each tick.
func (w *SettlementRetryWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("settlement retry worker started", zap.Duration("interval", w.interval))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("settlement retry worker stopped")
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

func (w *SettlementRetryWorker) drain(ctx context.Context) {
	for {
		processed, err := w.emitter.RetryOnce(ctx)
		if err != nil {
			w.logger.Error("settlement retry failed", zap.Error(err))
			return
		}
		if !processed {
			return
		}
	}
}
