package payments

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atlas-travel/backend/pkg/response"
)

// CreateOrderRequest is the body for POST /payments/order. The charge amount
// comes from the booking record, never from the client.
type CreateOrderRequest struct {
	BookingID   string `json:"booking_id" binding:"required"`
	BookingType string `json:"booking_type" binding:"required"`
}

// VerifyRequest is the body for POST /payments/verify, the client-redirect
// confirmation after gateway checkout.
type VerifyRequest struct {
	OrderID     string `json:"order_id" binding:"required"`
	PaymentID   string `json:"payment_id" binding:"required"`
	Signature   string `json:"signature" binding:"required"`
	BookingID   string `json:"booking_id" binding:"required"`
	BookingType string `json:"booking_type" binding:"required"`
}

// RefundRequest is the body for POST /payments/refund. Omitted amount means
// the remaining balance.
type RefundRequest struct {
	PaymentID   string `json:"payment_id" binding:"required"`
	AmountCents int64  `json:"amount_cents"`
	Reason      string `json:"reason"`
}

// Handler handles payment HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a payments handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// CreateOrder handles POST /payments/order.
func (h *Handler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	bookingID, err := uuid.Parse(req.BookingID)
	if err != nil {
		response.BadRequest(c, "invalid booking_id")
		return
	}
	order, err := h.svc.CreateOrder(c.Request.Context(), req.BookingType, bookingID)
	if err != nil {
		h.logger.Warn("create order rejected", zap.String("booking_id", req.BookingID), zap.Error(err))
		response.Error(c, err)
		return
	}
	response.OK(c, order)
}

// Verify handles POST /payments/verify.
func (h *Handler) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	bookingID, err := uuid.Parse(req.BookingID)
	if err != nil {
		response.BadRequest(c, "invalid booking_id")
		return
	}
	result, err := h.svc.VerifyPayment(c.Request.Context(), VerifyInput{
		OrderID:     req.OrderID,
		PaymentID:   req.PaymentID,
		Signature:   req.Signature,
		BookingID:   bookingID,
		BookingType: req.BookingType,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Refund handles POST /payments/refund (operator only).
func (h *Handler) Refund(c *gin.Context) {
	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	paymentID, err := uuid.Parse(req.PaymentID)
	if err != nil {
		response.BadRequest(c, "invalid payment_id")
		return
	}
	ref, payment, err := h.svc.Refund(c.Request.Context(), RefundInput{
		PaymentID:   paymentID,
		AmountCents: req.AmountCents,
		Reason:      req.Reason,
	})
	if err != nil {
		h.logger.Warn("refund rejected", zap.String("payment_id", req.PaymentID), zap.Error(err))
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{
		"refund_id":      ref.ID,
		"amount_cents":   ref.AmountCents,
		"status":         ref.Status,
		"payment_status": payment.Status,
		"message":        "refund accepted",
	})
}

// Status handles GET /payments/status. Read-only.
func (h *Handler) Status(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Query("booking_id"))
	if err != nil {
		response.BadRequest(c, "invalid booking_id")
		return
	}
	bookingType := c.Query("booking_type")

	var paymentID *uuid.UUID
	if raw := c.Query("payment_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "invalid payment_id")
			return
		}
		paymentID = &id
	}

	result, err := h.svc.Status(c.Request.Context(), bookingType, bookingID, paymentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}
