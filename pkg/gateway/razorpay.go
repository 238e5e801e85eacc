package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
	"go.uber.org/zap"
)

// Razorpay implements Gateway over the official SDK. The SDK does not take a
// context, so calls run in a goroutine and the context deadline is enforced
// with a select; the SDK's own HTTP timeout is a backstop.
type Razorpay struct {
	client *razorpay.Client
	keyID  string
	logger *zap.Logger
}

// NewRazorpay creates a Razorpay gateway with the given API keys.
func NewRazorpay(keyID, keySecret string, timeoutSec int64, logger *zap.Logger) *Razorpay {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := razorpay.NewClient(keyID, keySecret)
	if timeoutSec > 0 {
		client.SetTimeout(int16(timeoutSec))
	}
	return &Razorpay{client: client, keyID: keyID, logger: logger}
}

// Key returns the publishable key id for client checkout.
func (g *Razorpay) Key() string { return g.keyID }

// CreateOrder opens a Razorpay order in minor units.
func (g *Razorpay) CreateOrder(ctx context.Context, amountCents int64, currency, receipt string, notes map[string]interface{}) (*Order, error) {
	data := map[string]interface{}{
		"amount":   amountCents,
		"currency": currency,
		"receipt":  receipt,
	}
	if len(notes) > 0 {
		data["notes"] = notes
	}
	body, err := g.call(ctx, func() (map[string]interface{}, error) {
		return g.client.Order.Create(data, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("razorpay order create: %w", err)
	}
	id, _ := body["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("razorpay order create: no order id in response")
	}
	return &Order{
		ID:          id,
		AmountCents: asInt64(body["amount"]),
		Currency:    stringOr(body["currency"], currency),
		Receipt:     stringOr(body["receipt"], receipt),
	}, nil
}

// CreateRefund issues a refund against a captured payment.
func (g *Razorpay) CreateRefund(ctx context.Context, providerPaymentID string, amountCents int64, notes map[string]interface{}) (*Refund, error) {
	data := map[string]interface{}{}
	if len(notes) > 0 {
		data["notes"] = notes
	}
	body, err := g.call(ctx, func() (map[string]interface{}, error) {
		return g.client.Payment.Refund(providerPaymentID, int(amountCents), data, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("razorpay refund: %w", err)
	}
	id, _ := body["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("razorpay refund: no refund id in response")
	}
	return &Refund{
		ID:          id,
		AmountCents: asInt64(body["amount"]),
		Status:      stringOr(body["status"], "processing"),
	}, nil
}

// OrderPayments lists capture attempts recorded against an order.
func (g *Razorpay) OrderPayments(ctx context.Context, orderID string) ([]PaymentInfo, error) {
	body, err := g.call(ctx, func() (map[string]interface{}, error) {
		return g.client.Order.Payments(orderID, nil, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("razorpay order payments: %w", err)
	}
	items, _ := body["items"].([]interface{})
	out := make([]PaymentInfo, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]interface{})
		if !ok {
			continue
		}
		id, _ := m["id"].(string)
		status, _ := m["status"].(string)
		oid, _ := m["order_id"].(string)
		out = append(out, PaymentInfo{
			ID:          id,
			OrderID:     oid,
			Status:      status,
			AmountCents: asInt64(m["amount"]),
		})
	}
	return out, nil
}

func (g *Razorpay) call(ctx context.Context, fn func() (map[string]interface{}, error)) (map[string]interface{}, error) {
	type result struct {
		body map[string]interface{}
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		body, err := fn()
		ch <- result{body, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.body, r.err
	}
}

// asInt64 coerces the SDK's decoded JSON numbers (float64 or json.Number).
func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	default:
		return 0
	}
}

func stringOr(v interface{}, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}
