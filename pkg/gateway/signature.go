package gateway

import "github.com/razorpay/razorpay-go/utils"

// VerifyPaymentSignature checks the client-redirect signature: HMAC-SHA256 of
// "orderID|paymentID" under the key secret, hex-encoded. The SDK compares in
// constant time.
func VerifyPaymentSignature(orderID, paymentID, signature, secret string) bool {
	if orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	return utils.VerifyPaymentSignature(map[string]interface{}{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
	}, signature, secret)
}

// VerifyWebhookSignature checks X-Razorpay-Signature: HMAC-SHA256 over the raw
// request body under the webhook secret.
func VerifyWebhookSignature(body []byte, signature, secret string) bool {
	if len(body) == 0 || signature == "" {
		return false
	}
	return utils.VerifyWebhookSignature(string(body), signature, secret)
}
