package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentProvider identifies the gateway a payment was opened with.
const (
	PaymentProviderRazorpay = "razorpay"
)

// PaymentStatus for payment attempts. A booking may accumulate several
// attempts over retries; at most one may be pending at a time.
const (
	PaymentStatusPending           = "pending"
	PaymentStatusCompleted         = "completed"
	PaymentStatusFailed            = "failed"
	PaymentStatusRefunded          = "refunded"
	PaymentStatusPartiallyRefunded = "partially_refunded"
)

// Payment is one payment attempt against a booking, linked to the gateway by
// order id (set at creation) and payment id (set on first capture). Metadata
// accumulates gateway payloads append-only: updates merge, never overwrite.
type Payment struct {
	ID                uuid.UUID  `json:"id"`
	BookingID         uuid.UUID  `json:"booking_id"`
	BookingType       string     `json:"booking_type"`
	Provider          string     `json:"provider"`
	ProviderOrderID   string     `json:"provider_order_id"`
	ProviderPaymentID string     `json:"provider_payment_id,omitempty"`
	AmountCents       int64      `json:"amount_cents"`
	RefundedCents     int64      `json:"refunded_cents"`
	Currency          string     `json:"currency"`
	Status            string     `json:"status"`
	Metadata          []byte     `json:"metadata,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}
