// Package payments owns the payment lifecycle: opening gateway orders,
// reconciling the two confirmation paths (client redirect and webhook) onto
// one idempotent state machine, and issuing refunds.
package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atlas-travel/backend/internal/models"
	"github.com/atlas-travel/backend/pkg/apperr"
	"github.com/atlas-travel/backend/pkg/gateway"
)

// RefundFunc runs inside the store's per-payment lock with the current row
// and refunded total. It validates state, calls the gateway, and returns the
// refund row to persist plus the payment's next status.
type RefundFunc func(p *models.Payment, refundedCents int64) (*models.Refund, string, error)

// Store is the payment persistence surface. Implemented by Repository; tests
// substitute an in-memory fake with the same conditional-transition semantics.
type Store interface {
	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	// CompleteByOrderID transitions the payment for the order to completed
	// only if it is still pending, stamping completed_at and merging payload
	// into metadata. Returns the row (any status, nil if unknown order) and
	// whether this call performed the transition.
	CompleteByOrderID(ctx context.Context, orderID, providerPaymentID string, payload []byte) (*models.Payment, bool, error)
	// FailByOrderID is the symmetric pending-to-failed transition.
	FailByOrderID(ctx context.Context, orderID string, payload []byte) (*models.Payment, bool, error)
	LatestForBooking(ctx context.Context, bookingType string, bookingID uuid.UUID) (*models.Payment, error)
	HasPendingAttempt(ctx context.Context, bookingType string, bookingID uuid.UUID) (bool, error)
	ListRefunds(ctx context.Context, paymentID uuid.UUID) ([]models.Refund, error)
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.Payment, error)
	// RefundLocked serializes refunds per payment: it locks the row, hands it
	// to fn, persists the returned refund and the payment's next status.
	// All-nil return means the payment does not exist.
	RefundLocked(ctx context.Context, paymentID uuid.UUID, fn RefundFunc) (*models.Refund, *models.Payment, error)
}

// Bookings is the booking-side surface payments cascade into.
type Bookings interface {
	Snapshot(ctx context.Context, bookingType string, id uuid.UUID) (*models.BookingSnapshot, error)
	SetStatuses(ctx context.Context, bookingType string, id uuid.UUID, status, paymentStatus string) error
	SetPaymentStatus(ctx context.Context, bookingType string, id uuid.UUID, paymentStatus string) error
}

// Service drives the payment state machine. Both confirmation paths funnel
// through the same conditional capture primitive, so their relative order and
// redelivery never matter.
type Service struct {
	store         Store
	bookings      Bookings
	gw            gateway.Gateway
	keySecret     string
	webhookSecret string
	logger        *zap.Logger
}

// NewService creates a payments service.
func NewService(store Store, bookings Bookings, gw gateway.Gateway, keySecret, webhookSecret string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:         store,
		bookings:      bookings,
		gw:            gw,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// OrderDetails is what the client needs to open gateway checkout.
type OrderDetails struct {
	OrderID     string `json:"order_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	ProviderKey string `json:"provider_key"`
}

// CreateOrder opens a gateway order for the booking's server-computed amount
// and records a pending payment attempt against it. The local row is created
// only after the gateway call succeeds, so a gateway failure leaves nothing
// behind and the whole operation is safe to retry.
func (s *Service) CreateOrder(ctx context.Context, bookingType string, bookingID uuid.UUID) (*OrderDetails, error) {
	if !models.ValidBookingType(bookingType) {
		return nil, apperr.Validation("unknown booking type %q", bookingType)
	}
	snap, err := s.bookings.Snapshot(ctx, bookingType, bookingID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, apperr.NotFound("booking not found")
	}
	if snap.PaymentStatus == models.PaymentStatusCompleted {
		return nil, apperr.State("booking is already paid")
	}
	pending, err := s.store.HasPendingAttempt(ctx, bookingType, bookingID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, apperr.State("a pending payment attempt already exists for this booking")
	}

	// Timestamp salt keeps receipt labels unique across retries.
	receipt := fmt.Sprintf("bkg-%s-%d", snap.ID.String()[:8], time.Now().Unix())
	order, err := s.gw.CreateOrder(ctx, snap.AmountCents, snap.Currency, receipt, map[string]interface{}{
		"booking_id":   snap.ID.String(),
		"booking_type": bookingType,
		"reference":    snap.Reference,
	})
	if err != nil {
		s.logger.Error("gateway order create failed",
			zap.String("booking_id", bookingID.String()), zap.Error(err))
		return nil, apperr.Gateway("payment gateway unavailable", err)
	}

	p := &models.Payment{
		BookingID:       bookingID,
		BookingType:     bookingType,
		Provider:        models.PaymentProviderRazorpay,
		ProviderOrderID: order.ID,
		AmountCents:     snap.AmountCents,
		Currency:        snap.Currency,
		Status:          models.PaymentStatusPending,
	}
	if err := s.store.CreatePayment(ctx, p); err != nil {
		// The gateway order exists but has no local row; the reference is in
		// the log for manual reconciliation.
		s.logger.Error("persist payment failed after gateway order created",
			zap.String("provider_order_id", order.ID),
			zap.String("booking_id", bookingID.String()), zap.Error(err))
		return nil, err
	}
	s.logger.Info("payment order created",
		zap.String("payment_id", p.ID.String()),
		zap.String("provider_order_id", order.ID),
		zap.String("booking_id", bookingID.String()),
		zap.Int64("amount_cents", p.AmountCents))
	return &OrderDetails{
		OrderID:     order.ID,
		AmountCents: p.AmountCents,
		Currency:    p.Currency,
		ProviderKey: s.gw.Key(),
	}, nil
}

// VerifyInput is the client-redirect confirmation.
type VerifyInput struct {
	OrderID     string
	PaymentID   string
	Signature   string
	BookingType string
	BookingID   uuid.UUID
}

// VerifyResult acknowledges a verified confirmation.
type VerifyResult struct {
	Booking          *models.BookingSnapshot `json:"booking"`
	Payment          *models.Payment         `json:"payment"`
	AlreadyProcessed bool                    `json:"already_processed"`
}

// VerifyPayment handles the synchronous client path. The signature proves
// gateway-authorized completion; a mismatch changes no state. The transition
// is idempotent: a double submit observes the payment already completed and
// acknowledges without re-mutating.
func (s *Service) VerifyPayment(ctx context.Context, in VerifyInput) (*VerifyResult, error) {
	if !gateway.VerifyPaymentSignature(in.OrderID, in.PaymentID, in.Signature, s.keySecret) {
		s.logger.Warn("payment signature mismatch",
			zap.String("provider_order_id", in.OrderID),
			zap.String("booking_id", in.BookingID.String()))
		return nil, apperr.Signature("signature verification failed")
	}

	payload, _ := json.Marshal(map[string]string{
		"confirmed_via":       "client",
		"provider_payment_id": in.PaymentID,
	})
	p, transitioned, err := s.applyCapture(ctx, in.OrderID, in.PaymentID, payload)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.NotFound("no payment attempt found for order")
	}

	snap, err := s.bookings.Snapshot(ctx, p.BookingType, p.BookingID)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{Booking: snap, Payment: p, AlreadyProcessed: !transitioned}, nil
}

// Webhook event kinds this core acts on.
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
)

type webhookEvent struct {
	Entity  string `json:"entity"`
	Payload struct {
		Payment struct {
			Entity json.RawMessage `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

type paymentEntity struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// WebhookResult reports what a webhook delivery did. Processed is false for
// redeliveries and unrecognized events, which are acknowledged as no-ops.
type WebhookResult struct {
	Event     string `json:"event"`
	OrderID   string `json:"order_id,omitempty"`
	Processed bool   `json:"processed"`
}

// HandleWebhook handles the asynchronous gateway path. It validates the
// body's HMAC under the webhook secret, then drives the same conditional
// transition as the client path, so either may arrive first or alone.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signature string) (*WebhookResult, error) {
	if !gateway.VerifyWebhookSignature(body, signature, s.webhookSecret) {
		s.logger.Warn("webhook signature mismatch", zap.Int("body_len", len(body)))
		return nil, apperr.Signature("signature verification failed")
	}

	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, apperr.Validation("malformed webhook body")
	}
	var entity paymentEntity
	if len(ev.Payload.Payment.Entity) > 0 {
		if err := json.Unmarshal(ev.Payload.Payment.Entity, &entity); err != nil {
			return nil, apperr.Validation("malformed payment entity")
		}
	}
	res := &WebhookResult{Event: ev.Entity, OrderID: entity.OrderID}

	switch ev.Entity {
	case EventPaymentCaptured:
		payload := mergePayload("webhook_captured", ev.Payload.Payment.Entity)
		p, transitioned, err := s.applyCapture(ctx, entity.OrderID, entity.ID, payload)
		if err != nil {
			return nil, err
		}
		if p == nil {
			s.logger.Info("webhook for unknown order, acknowledged",
				zap.String("provider_order_id", entity.OrderID))
			return res, nil
		}
		res.Processed = transitioned
		if !transitioned {
			s.logger.Info("webhook capture already processed",
				zap.String("provider_order_id", entity.OrderID),
				zap.String("payment_id", p.ID.String()))
		}
	case EventPaymentFailed:
		payload := mergePayload("webhook_failed", ev.Payload.Payment.Entity)
		p, transitioned, err := s.store.FailByOrderID(ctx, entity.OrderID, payload)
		if err != nil {
			return nil, err
		}
		if p == nil {
			s.logger.Info("webhook for unknown order, acknowledged",
				zap.String("provider_order_id", entity.OrderID))
			return res, nil
		}
		if transitioned {
			// A failed payment does not cancel the reservation; the payer
			// may retry with a fresh order.
			if err := s.bookings.SetPaymentStatus(ctx, p.BookingType, p.BookingID, models.PaymentStatusFailed); err != nil {
				return nil, fmt.Errorf("cascade payment failure: %w", err)
			}
			s.logger.Info("payment failed",
				zap.String("payment_id", p.ID.String()),
				zap.String("provider_order_id", entity.OrderID))
		}
		res.Processed = transitioned
	default:
		s.logger.Debug("ignoring webhook event", zap.String("event", ev.Entity))
	}
	return res, nil
}

// applyCapture is the single capture primitive both confirmation paths and
// the reconciliation sweep call. The conditional update makes it idempotent;
// the booking cascade re-runs whenever the payment reads completed, so a
// crash between transition and cascade heals on the next delivery.
func (s *Service) applyCapture(ctx context.Context, orderID, providerPaymentID string, payload []byte) (*models.Payment, bool, error) {
	if orderID == "" {
		return nil, false, apperr.Validation("order id is required")
	}
	p, transitioned, err := s.store.CompleteByOrderID(ctx, orderID, providerPaymentID, payload)
	if err != nil {
		return nil, false, err
	}
	if p == nil {
		return nil, false, nil
	}
	if p.Status == models.PaymentStatusCompleted {
		if err := s.bookings.SetStatuses(ctx, p.BookingType, p.BookingID,
			models.BookingStatusConfirmed, models.PaymentStatusCompleted); err != nil {
			return nil, false, fmt.Errorf("cascade booking confirm: %w", err)
		}
	}
	if transitioned {
		s.logger.Info("payment completed",
			zap.String("payment_id", p.ID.String()),
			zap.String("provider_order_id", orderID),
			zap.String("provider_payment_id", providerPaymentID))
	}
	return p, transitioned, nil
}

// RefundInput requests a refund. AmountCents 0 means the remaining balance.
type RefundInput struct {
	PaymentID   uuid.UUID
	AmountCents int64
	Reason      string
}

// Refund issues a partial or full refund against a completed payment. The
// store serializes refunds per payment, so two concurrent partials cannot
// both pass the balance check against a stale read.
func (s *Service) Refund(ctx context.Context, in RefundInput) (*models.Refund, *models.Payment, error) {
	ref, p, err := s.store.RefundLocked(ctx, in.PaymentID, func(p *models.Payment, refundedCents int64) (*models.Refund, string, error) {
		if p.Status != models.PaymentStatusCompleted && p.Status != models.PaymentStatusPartiallyRefunded {
			return nil, "", apperr.State("payment in status %q cannot be refunded", p.Status)
		}
		if p.ProviderPaymentID == "" {
			return nil, "", apperr.State("payment has no captured transaction to refund")
		}
		remaining := p.AmountCents - refundedCents
		amount := in.AmountCents
		if amount == 0 {
			amount = remaining
		}
		if amount <= 0 || amount > remaining {
			return nil, "", apperr.State("refund amount must be between 1 and the remaining balance of %d", remaining)
		}

		gwRef, err := s.gw.CreateRefund(ctx, p.ProviderPaymentID, amount, map[string]interface{}{
			"payment_id": p.ID.String(),
			"reason":     in.Reason,
		})
		if err != nil {
			s.logger.Error("gateway refund failed",
				zap.String("payment_id", p.ID.String()),
				zap.String("provider_payment_id", p.ProviderPaymentID), zap.Error(err))
			return nil, "", apperr.Gateway("payment gateway unavailable", err)
		}

		next := models.PaymentStatusPartiallyRefunded
		if refundedCents+amount == p.AmountCents {
			next = models.PaymentStatusRefunded
		}
		meta, _ := json.Marshal(map[string]string{"provider_refund_status": gwRef.Status})
		return &models.Refund{
			PaymentID:        p.ID,
			AmountCents:      amount,
			Reason:           in.Reason,
			Status:           models.RefundStatusProcessing,
			ProviderRefundID: gwRef.ID,
			Metadata:         meta,
		}, next, nil
	})
	if err != nil {
		return nil, nil, err
	}
	if ref == nil {
		return nil, nil, apperr.NotFound("payment not found")
	}

	// Any refund, partial or full, takes the reservation out of play.
	if err := s.bookings.SetStatuses(ctx, p.BookingType, p.BookingID,
		models.BookingStatusCancelled, p.Status); err != nil {
		return nil, nil, fmt.Errorf("cascade refund to booking: %w", err)
	}
	s.logger.Info("refund issued",
		zap.String("refund_id", ref.ID.String()),
		zap.String("payment_id", p.ID.String()),
		zap.Int64("amount_cents", ref.AmountCents),
		zap.String("payment_status", p.Status))
	return ref, p, nil
}

// StatusResult is the read-only snapshot for a booking's payment state.
type StatusResult struct {
	Booking *models.BookingSnapshot `json:"booking"`
	Payment *models.Payment         `json:"payment,omitempty"`
	Refunds []models.Refund         `json:"refunds,omitempty"`
}

// Status returns the latest payment (or the one requested) plus the owning
// booking snapshot. No side effects.
func (s *Service) Status(ctx context.Context, bookingType string, bookingID uuid.UUID, paymentID *uuid.UUID) (*StatusResult, error) {
	if !models.ValidBookingType(bookingType) {
		return nil, apperr.Validation("unknown booking type %q", bookingType)
	}
	snap, err := s.bookings.Snapshot(ctx, bookingType, bookingID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, apperr.NotFound("booking not found")
	}

	var p *models.Payment
	if paymentID != nil {
		p, err = s.store.GetPayment(ctx, *paymentID)
		if err != nil {
			return nil, err
		}
		if p == nil || p.BookingID != bookingID || p.BookingType != bookingType {
			return nil, apperr.NotFound("payment not found for booking")
		}
	} else {
		p, err = s.store.LatestForBooking(ctx, bookingType, bookingID)
		if err != nil {
			return nil, err
		}
	}

	res := &StatusResult{Booking: snap, Payment: p}
	if p != nil {
		res.Refunds, err = s.store.ListRefunds(ctx, p.ID)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

// ReconcileOrder re-queries the gateway for a stale pending order and applies
// any capture it finds through the usual primitive. Called by the worker.
func (s *Service) ReconcileOrder(ctx context.Context, providerOrderID string) error {
	infos, err := s.gw.OrderPayments(ctx, providerOrderID)
	if err != nil {
		return apperr.Gateway("payment gateway unavailable", err)
	}
	for _, pi := range infos {
		if pi.Status != "captured" {
			continue
		}
		payload, _ := json.Marshal(map[string]string{
			"confirmed_via":       "reconciler",
			"provider_payment_id": pi.ID,
		})
		_, transitioned, err := s.applyCapture(ctx, providerOrderID, pi.ID, payload)
		if err != nil {
			return err
		}
		if transitioned {
			s.logger.Info("stale pending order reconciled",
				zap.String("provider_order_id", providerOrderID),
				zap.String("provider_payment_id", pi.ID))
		}
		return nil
	}
	s.logger.Debug("no capture found for stale order", zap.String("provider_order_id", providerOrderID))
	return nil
}

func mergePayload(key string, entity json.RawMessage) []byte {
	if len(entity) == 0 {
		return []byte(`{}`)
	}
	payload, err := json.Marshal(map[string]json.RawMessage{key: entity})
	if err != nil {
		return []byte(`{}`)
	}
	return payload
}
