package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/leonclem/one-minute-menu-sub003/config"
	"github.com/leonclem/one-minute-menu-sub003/middleware"
	"github.com/leonclem/one-minute-menu-sub003/model"
	"github.com/leonclem/one-minute-menu-sub003/pkg/logger"
	"github.com/leonclem/one-minute-menu-sub003/service"
)

type BillingHandler struct {
	store  service.Store
	config *config.Config
}

func NewBillingHandler(store service.Store, cfg *config.Config) *BillingHandler {
	return &BillingHandler{store: store, config: cfg}
}

// webhookEvent is the payment provider's notification payload
type webhookEvent struct {
	Event       string `json:"event"`
	UserID      string `json:"user_id"`
	Plan        string `json:"plan"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	ProviderRef string `json:"provider_ref"`
}

// HandleWebhook processes payment provider notifications. The request body
// must carry an HMAC-SHA256 signature over the raw bytes in
// X-Webhook-Signature; anything unsigned is rejected before parsing.
func (h *BillingHandler) HandleWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	if !h.validSignature(body, c.GetHeader("X-Webhook-Signature")) {
		apiError(c, http.StatusUnauthorized, CodeInvalidSignature, "Webhook signature verification failed")
		return
	}

	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook payload"})
		return
	}

	ctx := c.Request.Context()

	switch ev.Event {
	case "purchase.completed":
		if ev.Plan != model.PlanFree && ev.Plan != model.PlanPro {
			apiError(c, http.StatusBadRequest, CodeValidation, "Unknown plan")
			return
		}
		purchase := &model.Purchase{
			ID:          uuid.New().String(),
			UserID:      ev.UserID,
			Plan:        ev.Plan,
			AmountCents: ev.AmountCents,
			Currency:    ev.Currency,
			ProviderRef: ev.ProviderRef,
			CreatedAt:   time.Now(),
		}
		if err := h.store.CreatePurchase(ctx, purchase); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record purchase"})
			return
		}
		if err := h.store.UpdateProfilePlan(ctx, ev.UserID, ev.Plan); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update plan"})
			return
		}
		logger.Info(ctx, "plan upgraded via webhook", "user_id", ev.UserID, "plan", ev.Plan, "provider_ref", ev.ProviderRef)

	case "purchase.refunded":
		if err := h.store.UpdateProfilePlan(ctx, ev.UserID, model.PlanFree); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to downgrade plan"})
			return
		}
		logger.Info(ctx, "plan downgraded after refund", "user_id", ev.UserID, "provider_ref", ev.ProviderRef)

	default:
		// Unknown events are acknowledged so the provider stops retrying
		logger.Warn(ctx, "ignoring unknown webhook event", "event", ev.Event)
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *BillingHandler) validSignature(body []byte, signature string) bool {
	if signature == "" || h.config.Billing.WebhookSecret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.config.Billing.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ListPurchases returns the authenticated user's purchase history
func (h *BillingHandler) ListPurchases(c *gin.Context) {
	purchases, err := h.store.ListPurchases(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list purchases"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"purchases": purchases})
}
