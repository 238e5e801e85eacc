package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-travel/backend/pkg/queue"
)

type fakeReconciler struct {
	orders []string
	err    error
}

func (f *fakeReconciler) ReconcileOrder(_ context.Context, providerOrderID string) error {
	f.orders = append(f.orders, providerOrderID)
	return f.err
}

func reconcileJob(t *testing.T, payload queue.ReconcileOrderPayload) *queue.Job {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return &queue.Job{ID: uuid.New().String(), Type: queue.JobTypeReconcileOrder, Payload: raw}
}

func TestProcessReconcileJob(t *testing.T) {
	ctx := context.Background()

	t.Run("hands the order to the reconciler", func(t *testing.T) {
		rec := &fakeReconciler{}
		p := NewProcessor(rec, nil, nil, nil)
		job := reconcileJob(t, queue.ReconcileOrderPayload{
			PaymentID:       uuid.New(),
			ProviderOrderID: "order_stale",
		})
		require.NoError(t, p.Process(ctx, job))
		assert.Equal(t, []string{"order_stale"}, rec.orders)
	})

	t.Run("reconciler failure surfaces for retry", func(t *testing.T) {
		rec := &fakeReconciler{err: fmt.Errorf("gateway down")}
		p := NewProcessor(rec, nil, nil, nil)
		job := reconcileJob(t, queue.ReconcileOrderPayload{ProviderOrderID: "order_stale"})
		assert.Error(t, p.Process(ctx, job))
	})

	t.Run("malformed payload", func(t *testing.T) {
		p := NewProcessor(&fakeReconciler{}, nil, nil, nil)
		job := &queue.Job{Type: queue.JobTypeReconcileOrder, Payload: []byte(`{not json`)}
		assert.Error(t, p.Process(ctx, job))
	})
}

func TestProcessArchiveJob(t *testing.T) {
	ctx := context.Background()

	t.Run("dropped without a configured bucket", func(t *testing.T) {
		rec := &fakeReconciler{}
		p := NewProcessor(rec, nil, nil, nil)
		raw, err := json.Marshal(queue.WebhookArchivePayload{
			EventID: uuid.New().String(),
			Event:   "payment.captured",
			Body:    json.RawMessage(`{}`),
		})
		require.NoError(t, err)
		job := &queue.Job{Type: queue.JobTypeWebhookArchive, Payload: raw}
		require.NoError(t, p.Process(ctx, job))
		assert.Empty(t, rec.orders)
	})
}

func TestProcessUnknownJob(t *testing.T) {
	p := NewProcessor(&fakeReconciler{}, nil, nil, nil)
	err := p.Process(context.Background(), &queue.Job{Type: "vacuum_floors"})
	assert.Error(t, err)
}
