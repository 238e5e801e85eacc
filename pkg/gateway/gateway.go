// Package gateway abstracts the payment provider so services and tests do not
// depend on the Razorpay SDK directly. Amounts are minor units (paisa/cents).
package gateway

import "context"

// Order is a gateway-side payment intent created before checkout.
type Order struct {
	ID          string
	AmountCents int64
	Currency    string
	Receipt     string
}

// Refund is the gateway's acknowledgement of a refund request.
type Refund struct {
	ID          string
	AmountCents int64
	Status      string
}

// PaymentInfo is a capture attempt reported by the gateway for an order,
// used by the reconciliation sweep.
type PaymentInfo struct {
	ID          string
	OrderID     string
	Status      string
	AmountCents int64
}

// Gateway is the outbound payment provider surface.
type Gateway interface {
	// CreateOrder opens a gateway order for the amount. The receipt label must
	// be unique across retries for the same booking.
	CreateOrder(ctx context.Context, amountCents int64, currency, receipt string, notes map[string]interface{}) (*Order, error)
	// CreateRefund issues a partial or full refund against a captured payment.
	CreateRefund(ctx context.Context, providerPaymentID string, amountCents int64, notes map[string]interface{}) (*Refund, error)
	// OrderPayments lists capture attempts recorded against an order.
	OrderPayments(ctx context.Context, orderID string) ([]PaymentInfo, error)
	// Key returns the publishable key id the client needs to open checkout.
	Key() string
}
