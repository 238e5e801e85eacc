package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-travel/backend/internal/models"
	"github.com/atlas-travel/backend/pkg/apperr"
)

const paymentColumns = `id, booking_id, booking_type, provider, provider_order_id, provider_payment_id,
	amount_cents, refunded_cents, currency, status, metadata, completed_at, created_at, updated_at`

// Repository persists payments and refunds.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a payments repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreatePayment inserts a pending payment attempt. The partial unique index
// on (booking_type, booking_id) where status='pending' is the backstop for
// the one-pending-attempt invariant.
func (r *Repository) CreatePayment(ctx context.Context, p *models.Payment) error {
	const q = `INSERT INTO payments
		(id, booking_id, booking_type, provider, provider_order_id, amount_cents, currency, status)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, 'pending')
		RETURNING id, refunded_cents, metadata, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q,
		p.BookingID, p.BookingType, p.Provider, p.ProviderOrderID, p.AmountCents, p.Currency,
	).Scan(&p.ID, &p.RefundedCents, &p.Metadata, &p.CreatedAt, &p.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return apperr.State("a pending payment attempt already exists for this booking")
	}
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	p.Status = models.PaymentStatusPending
	return nil
}

// GetPayment returns a payment by ID, or nil if absent.
func (r *Repository) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return r.queryOne(ctx, q, id)
}

// getByOrderID returns a payment by gateway order id regardless of status.
func (r *Repository) getByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE provider_order_id = $1`
	return r.queryOne(ctx, q, orderID)
}

// CompleteByOrderID performs the conditional pending-to-completed transition.
// The WHERE status='pending' guard is the de-duplication mechanism: a
// redelivered or concurrent confirmation finds no pending row and becomes a
// no-op. completed_at is stamped exactly once, metadata merges append-only.
func (r *Repository) CompleteByOrderID(ctx context.Context, orderID, providerPaymentID string, payload []byte) (*models.Payment, bool, error) {
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}
	q := `UPDATE payments
		SET status = 'completed',
		    provider_payment_id = $2,
		    completed_at = NOW(),
		    metadata = metadata || $3::jsonb,
		    updated_at = NOW()
		WHERE provider_order_id = $1 AND status = 'pending'
		RETURNING ` + paymentColumns
	p, err := r.scanOne(r.pool.QueryRow(ctx, q, orderID, providerPaymentID, payload))
	if err == nil {
		return p, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("complete payment: %w", err)
	}
	existing, err := r.getByOrderID(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// FailByOrderID performs the conditional pending-to-failed transition.
func (r *Repository) FailByOrderID(ctx context.Context, orderID string, payload []byte) (*models.Payment, bool, error) {
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}
	q := `UPDATE payments
		SET status = 'failed',
		    metadata = metadata || $2::jsonb,
		    updated_at = NOW()
		WHERE provider_order_id = $1 AND status = 'pending'
		RETURNING ` + paymentColumns
	p, err := r.scanOne(r.pool.QueryRow(ctx, q, orderID, payload))
	if err == nil {
		return p, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("fail payment: %w", err)
	}
	existing, err := r.getByOrderID(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// LatestForBooking returns the most recent payment attempt for a booking, or
// nil if none exists.
func (r *Repository) LatestForBooking(ctx context.Context, bookingType string, bookingID uuid.UUID) (*models.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments
		WHERE booking_type = $1 AND booking_id = $2
		ORDER BY created_at DESC LIMIT 1`
	return r.queryOne(ctx, q, bookingType, bookingID)
}

// HasPendingAttempt reports whether the booking has a live payment attempt.
func (r *Repository) HasPendingAttempt(ctx context.Context, bookingType string, bookingID uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS (
		SELECT 1 FROM payments WHERE booking_type = $1 AND booking_id = $2 AND status = 'pending')`
	var exists bool
	err := r.pool.QueryRow(ctx, q, bookingType, bookingID).Scan(&exists)
	return exists, err
}

// ListRefunds returns refunds for a payment, newest first.
func (r *Repository) ListRefunds(ctx context.Context, paymentID uuid.UUID) ([]models.Refund, error) {
	const q = `SELECT id, payment_id, amount_cents, reason, status, provider_refund_id, metadata, created_at, updated_at
		FROM refunds WHERE payment_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Refund
	for rows.Next() {
		var ref models.Refund
		if err := rows.Scan(&ref.ID, &ref.PaymentID, &ref.AmountCents, &ref.Reason, &ref.Status,
			&ref.ProviderRefundID, &ref.Metadata, &ref.CreatedAt, &ref.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, ref)
	}
	return list, rows.Err()
}

// ListStalePending returns payments stuck pending since before olderThan, for
// the reconciliation sweep.
func (r *Repository) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at ASC LIMIT $2`
	rows, err := r.pool.Query(ctx, q, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Payment
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.ID, &p.BookingID, &p.BookingType, &p.Provider, &p.ProviderOrderID,
			&p.ProviderPaymentID, &p.AmountCents, &p.RefundedCents, &p.Currency, &p.Status,
			&p.Metadata, &p.CompletedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// RefundLocked serializes refund processing per payment: the row lock is held
// across fn (including its gateway call), so concurrent refunds against the
// same payment queue up and re-read the committed refunded total.
func (r *Repository) RefundLocked(ctx context.Context, paymentID uuid.UUID, fn RefundFunc) (*models.Refund, *models.Payment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 FOR UPDATE`
	p, err := r.scanOne(tx.QueryRow(ctx, q, paymentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("lock payment: %w", err)
	}

	ref, nextStatus, err := fn(p, p.RefundedCents)
	if err != nil {
		return nil, nil, err
	}

	const insert = `INSERT INTO refunds
		(id, payment_id, amount_cents, reason, status, provider_refund_id, metadata)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	meta := ref.Metadata
	if len(meta) == 0 {
		meta = []byte(`{}`)
	}
	if err := tx.QueryRow(ctx, insert,
		ref.PaymentID, ref.AmountCents, ref.Reason, ref.Status, ref.ProviderRefundID, meta,
	).Scan(&ref.ID, &ref.CreatedAt, &ref.UpdatedAt); err != nil {
		return nil, nil, fmt.Errorf("insert refund: %w", err)
	}

	const update = `UPDATE payments
		SET refunded_cents = refunded_cents + $2, status = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING refunded_cents, status, updated_at`
	if err := tx.QueryRow(ctx, update, paymentID, ref.AmountCents, nextStatus).
		Scan(&p.RefundedCents, &p.Status, &p.UpdatedAt); err != nil {
		return nil, nil, fmt.Errorf("update payment after refund: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit refund: %w", err)
	}
	return ref, p, nil
}

func (r *Repository) queryOne(ctx context.Context, q string, args ...interface{}) (*models.Payment, error) {
	p, err := r.scanOne(r.pool.QueryRow(ctx, q, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Repository) scanOne(row pgx.Row) (*models.Payment, error) {
	var p models.Payment
	err := row.Scan(&p.ID, &p.BookingID, &p.BookingType, &p.Provider, &p.ProviderOrderID,
		&p.ProviderPaymentID, &p.AmountCents, &p.RefundedCents, &p.Currency, &p.Status,
		&p.Metadata, &p.CompletedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
