package payments

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atlas-travel/backend/pkg/apperr"
	"github.com/atlas-travel/backend/pkg/queue"
	"github.com/atlas-travel/backend/pkg/response"
)

// SignatureHeader carries the gateway's HMAC over the raw request body.
const SignatureHeader = "X-Razorpay-Signature"

// WebhookHandler terminates the asynchronous gateway path. Signature
// verification and state transitions live in the service; this layer reads
// the raw body, maps outcomes to status codes and enqueues the audit archive.
type WebhookHandler struct {
	svc    *Service
	queue  *queue.Queue
	logger *zap.Logger
}

// NewWebhookHandler creates a webhook handler. queue may be nil when no
// archive worker is configured.
func NewWebhookHandler(svc *Service, q *queue.Queue, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{svc: svc, queue: q, logger: logger}
}

// Handle handles POST /webhooks/razorpay. Signature mismatch is 400; genuine
// processing failures are 5xx so the gateway redelivers; everything else,
// including redeliveries and unknown orders, is acknowledged with 200 to
// avoid retry storms on already-handled events.
func (h *WebhookHandler) Handle(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, "unreadable body")
		return
	}
	signature := c.GetHeader(SignatureHeader)

	result, err := h.svc.HandleWebhook(c.Request.Context(), body, signature)
	if err != nil {
		switch apperr.KindOf(err) {
		case apperr.KindSignature, apperr.KindValidation:
			response.Error(c, err)
		default:
			h.logger.Error("webhook processing failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, response.Body{Success: false, Error: "processing failed"})
		}
		return
	}

	h.archive(c, result, body)
	response.OK(c, result)
}

// archive enqueues the raw payload for the S3 audit trail. Best-effort: an
// enqueue failure is logged, never surfaced to the gateway.
func (h *WebhookHandler) archive(c *gin.Context, result *WebhookResult, body []byte) {
	if h.queue == nil {
		return
	}
	err := h.queue.EnqueueWebhookArchive(c.Request.Context(), queue.WebhookArchivePayload{
		EventID:    uuid.New().String(),
		Event:      result.Event,
		ReceivedAt: time.Now().UTC(),
		Body:       body,
	})
	if err != nil {
		h.logger.Warn("webhook archive enqueue failed",
			zap.String("event", result.Event),
			zap.String("order_id", result.OrderID), zap.Error(err))
	}
}
