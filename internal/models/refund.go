package models

import (
	"time"

	"github.com/google/uuid"
)

// RefundStatus for refund operations. A refund is created processing once the
// gateway accepts it; settlement webhooks are not modelled, an operator
// reconciles via the gateway dashboard if one sticks.
const (
	RefundStatusProcessing = "processing"
	RefundStatusCompleted  = "completed"
	RefundStatusFailed     = "failed"
)

// Refund is one refund operation against a completed payment. The sum of
// refund amounts for a payment never exceeds that payment's amount.
type Refund struct {
	ID               uuid.UUID `json:"id"`
	PaymentID        uuid.UUID `json:"payment_id"`
	AmountCents      int64     `json:"amount_cents"`
	Reason           string    `json:"reason,omitempty"`
	Status           string    `json:"status"`
	ProviderRefundID string    `json:"provider_refund_id,omitempty"`
	Metadata         []byte    `json:"metadata,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
