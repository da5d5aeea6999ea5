package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quoteajob/quoteajob/internal/services"
)

// maxWebhookBodyBytes bounds the provider payload read into memory.
const maxWebhookBodyBytes = 65536

// WebhookHandler receives payment provider events.
type WebhookHandler struct {
	subscriptionService services.ISubscriptionService
}

func NewWebhookHandler(subscriptionService services.ISubscriptionService) *WebhookHandler {
	return &WebhookHandler{subscriptionService: subscriptionService}
}

// StripeWebhook handles POST /v1/stripe/webhook
func (h *WebhookHandler) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No signature"})
		return
	}

	outcome, err := h.subscriptionService.HandleWebhook(c.Request.Context(), payload, signature)
	if err != nil {
		respondError(c, err, "Webhook handler failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "outcome": outcome})
}
