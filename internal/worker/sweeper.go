package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-travel/backend/internal/payments"
	"github.com/atlas-travel/backend/pkg/queue"
)

// sweepBatch bounds how many stale orders one sweep enqueues.
const sweepBatch = 100

// Sweeper periodically finds payments stuck pending past the threshold and
// enqueues reconcile jobs for them. The conditional-transition guard makes
// re-enqueueing the same order across sweeps harmless.
type Sweeper struct {
	store      payments.Store
	queue      *queue.Queue
	interval   time.Duration
	staleAfter time.Duration
	logger     *zap.Logger
}

// NewSweeper creates a stale-pending sweeper.
func NewSweeper(store payments.Store, q *queue.Queue, interval, staleAfter time.Duration, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{store: store, queue: q, interval: interval, staleAfter: staleAfter, logger: logger}
}

// Run sweeps on the configured interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopping")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	stale, err := s.store.ListStalePending(ctx, time.Now().Add(-s.staleAfter), sweepBatch)
	if err != nil {
		s.logger.Error("list stale pending payments", zap.Error(err))
		return
	}
	for _, p := range stale {
		err := s.queue.EnqueueReconcileOrder(ctx, queue.ReconcileOrderPayload{
			PaymentID:       p.ID,
			ProviderOrderID: p.ProviderOrderID,
		})
		if err != nil {
			s.logger.Error("enqueue reconcile job",
				zap.String("payment_id", p.ID.String()), zap.Error(err))
		}
	}
	if len(stale) > 0 {
		s.logger.Info("stale pending payments queued for reconciliation", zap.Int("count", len(stale)))
	}
}
