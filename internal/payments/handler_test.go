package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-travel/backend/internal/models"
	"github.com/atlas-travel/backend/pkg/response"
)

func newTestRouter(h *harness) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewHandler(h.svc, nil)
	webhook := NewWebhookHandler(h.svc, nil, nil)

	r := gin.New()
	r.POST("/payments/order", handler.CreateOrder)
	r.POST("/payments/verify", handler.Verify)
	r.POST("/payments/refund", handler.Refund)
	r.GET("/payments/status", handler.Status)
	r.POST("/webhooks/razorpay", webhook.Handle)
	return r
}

func postJSON(r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) response.Body {
	t.Helper()
	var b response.Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
	return b
}

func TestCreateOrderEndpoint(t *testing.T) {
	t.Run("returns checkout details", func(t *testing.T) {
		h := newHarness()
		r := newTestRouter(h)
		bookingID := h.bookings.add(500000)

		w := postJSON(r, "/payments/order", CreateOrderRequest{
			BookingID:   bookingID.String(),
			BookingType: models.BookingTypeHotel,
		})
		require.Equal(t, http.StatusOK, w.Code)
		b := decodeBody(t, w)
		assert.True(t, b.Success)
		data := b.Data.(map[string]interface{})
		assert.Equal(t, float64(500000), data["amount_cents"])
		assert.NotEmpty(t, data["order_id"])
		assert.Equal(t, "rzp_test_fakekey", data["provider_key"])
	})

	t.Run("missing fields", func(t *testing.T) {
		h := newHarness()
		w := postJSON(newTestRouter(h), "/payments/order", gin.H{"booking_id": uuid.New().String()})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed booking id", func(t *testing.T) {
		h := newHarness()
		w := postJSON(newTestRouter(h), "/payments/order", CreateOrderRequest{
			BookingID:   "not-a-uuid",
			BookingType: models.BookingTypeHotel,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown booking", func(t *testing.T) {
		h := newHarness()
		w := postJSON(newTestRouter(h), "/payments/order", CreateOrderRequest{
			BookingID:   uuid.New().String(),
			BookingType: models.BookingTypeHotel,
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("duplicate pending attempt", func(t *testing.T) {
		h := newHarness()
		r := newTestRouter(h)
		bookingID, _ := h.openOrder(t, 500000)
		w := postJSON(r, "/payments/order", CreateOrderRequest{
			BookingID:   bookingID.String(),
			BookingType: models.BookingTypeHotel,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.False(t, decodeBody(t, w).Success)
	})

	t.Run("gateway outage", func(t *testing.T) {
		h := newHarness()
		h.gw.failOrders = true
		bookingID := h.bookings.add(500000)
		w := postJSON(newTestRouter(h), "/payments/order", CreateOrderRequest{
			BookingID:   bookingID.String(),
			BookingType: models.BookingTypeHotel,
		})
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestVerifyEndpoint(t *testing.T) {
	t.Run("valid confirmation", func(t *testing.T) {
		h := newHarness()
		r := newTestRouter(h)
		bookingID, od := h.openOrder(t, 500000)

		w := postJSON(r, "/payments/verify", VerifyRequest{
			OrderID:     od.OrderID,
			PaymentID:   "pay_http",
			Signature:   paymentSig(od.OrderID, "pay_http"),
			BookingID:   bookingID.String(),
			BookingType: models.BookingTypeHotel,
		})
		require.Equal(t, http.StatusOK, w.Code)
		b := decodeBody(t, w)
		data := b.Data.(map[string]interface{})
		assert.Equal(t, false, data["already_processed"])
	})

	t.Run("tampered signature", func(t *testing.T) {
		h := newHarness()
		r := newTestRouter(h)
		bookingID, od := h.openOrder(t, 500000)

		w := postJSON(r, "/payments/verify", VerifyRequest{
			OrderID:     od.OrderID,
			PaymentID:   "pay_http",
			Signature:   "deadbeef",
			BookingID:   bookingID.String(),
			BookingType: models.BookingTypeHotel,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestRefundEndpoint(t *testing.T) {
	t.Run("accepted refund", func(t *testing.T) {
		h := newHarness()
		r := newTestRouter(h)
		_, paymentID := h.completedPayment(t, 500000)

		w := postJSON(r, "/payments/refund", RefundRequest{
			PaymentID: paymentID.String(),
			Reason:    "guest cancelled",
		})
		require.Equal(t, http.StatusOK, w.Code)
		data := decodeBody(t, w).Data.(map[string]interface{})
		assert.Equal(t, float64(500000), data["amount_cents"])
		assert.Equal(t, models.PaymentStatusRefunded, data["payment_status"])
	})

	t.Run("refund on pending payment", func(t *testing.T) {
		h := newHarness()
		r := newTestRouter(h)
		bookingID, _ := h.openOrder(t, 500000)
		p, err := h.store.LatestForBooking(context.Background(), models.BookingTypeHotel, bookingID)
		require.NoError(t, err)

		w := postJSON(r, "/payments/refund", RefundRequest{PaymentID: p.ID.String()})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestStatusEndpoint(t *testing.T) {
	h := newHarness()
	r := newTestRouter(h)
	bookingID, paymentID := h.completedPayment(t, 500000)

	t.Run("latest payment", func(t *testing.T) {
		url := fmt.Sprintf("/payments/status?booking_type=%s&booking_id=%s",
			models.BookingTypeHotel, bookingID)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, url, nil))
		require.Equal(t, http.StatusOK, w.Code)
		data := decodeBody(t, w).Data.(map[string]interface{})
		payment := data["payment"].(map[string]interface{})
		assert.Equal(t, paymentID.String(), payment["id"])
		assert.Equal(t, models.PaymentStatusCompleted, payment["status"])
	})

	t.Run("malformed booking id", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/payments/status?booking_id=nope", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestWebhookEndpoint(t *testing.T) {
	post := func(r *gin.Engine, body []byte, sig string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/razorpay", bytes.NewReader(body))
		req.Header.Set(SignatureHeader, sig)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("valid delivery", func(t *testing.T) {
		h := newHarness()
		r := newTestRouter(h)
		_, od := h.openOrder(t, 500000)
		body := capturedBody(od.OrderID, "pay_wh")

		w := post(r, body, webhookSig(body))
		require.Equal(t, http.StatusOK, w.Code)
		data := decodeBody(t, w).Data.(map[string]interface{})
		assert.Equal(t, true, data["processed"])
	})

	t.Run("redelivery gets 200 so the gateway stops retrying", func(t *testing.T) {
		h := newHarness()
		r := newTestRouter(h)
		_, od := h.openOrder(t, 500000)
		body := capturedBody(od.OrderID, "pay_wh")

		post(r, body, webhookSig(body))
		w := post(r, body, webhookSig(body))
		require.Equal(t, http.StatusOK, w.Code)
		data := decodeBody(t, w).Data.(map[string]interface{})
		assert.Equal(t, false, data["processed"])
	})

	t.Run("missing signature", func(t *testing.T) {
		h := newHarness()
		r := newTestRouter(h)
		_, od := h.openOrder(t, 500000)
		body := capturedBody(od.OrderID, "pay_wh")

		w := post(r, body, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		h := newHarness()
		r := newTestRouter(h)
		_, od := h.openOrder(t, 500000)
		body := capturedBody(od.OrderID, "pay_wh")

		w := post(r, body, hmacHex("wrong_secret", body))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
