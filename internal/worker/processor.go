// Package worker runs payment background jobs: archiving raw webhook
// payloads to S3 and reconciling orders stuck pending past the threshold.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-travel/backend/pkg/queue"
	"github.com/atlas-travel/backend/pkg/storage"
)

// Reconciler re-queries the gateway for an order and applies any capture it
// finds. Satisfied by payments.Service.
type Reconciler interface {
	ReconcileOrder(ctx context.Context, providerOrderID string) error
}

// Processor consumes payment jobs from the queue.
type Processor struct {
	svc    Reconciler
	s3     *storage.S3
	queue  *queue.Queue
	logger *zap.Logger
}

// NewProcessor creates a payment job processor. s3 may be nil; archive jobs
// are then dropped with a warning instead of retried.
func NewProcessor(svc Reconciler, s3 *storage.S3, q *queue.Queue, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{svc: svc, s3: s3, queue: q, logger: logger}
}

// Process executes one job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeWebhookArchive:
		var payload queue.WebhookArchivePayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal archive payload: %w", err)
		}
		if p.s3 == nil {
			p.logger.Warn("no archive bucket configured, dropping webhook archive",
				zap.String("event_id", payload.EventID))
			return nil
		}
		key := storage.WebhookKey(payload.ReceivedAt, payload.EventID)
		if _, err := p.s3.ArchiveWebhook(ctx, key, payload.Body); err != nil {
			return fmt.Errorf("archive webhook: %w", err)
		}
		p.logger.Info("webhook payload archived",
			zap.String("event_id", payload.EventID), zap.String("key", key))
		return nil

	case queue.JobTypeReconcileOrder:
		var payload queue.ReconcileOrderPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal reconcile payload: %w", err)
		}
		if err := p.svc.ReconcileOrder(ctx, payload.ProviderOrderID); err != nil {
			return fmt.Errorf("reconcile order %s: %w", payload.ProviderOrderID, err)
		}
		p.logger.Debug("reconcile job done",
			zap.String("payment_id", payload.PaymentID.String()),
			zap.String("provider_order_id", payload.ProviderOrderID))
		return nil

	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("payment worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
		}
	}
}
