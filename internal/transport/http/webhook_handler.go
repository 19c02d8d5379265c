package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"licensing-service/internal/billing"
	"licensing-service/internal/domain"
	"licensing-service/internal/middleware"
	"licensing-service/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// WebhookHandler принимает события биллинга. Подпись проверяется
// секретом той партиции, в которую адресован запрос.
type WebhookHandler struct {
	lifecycle *usecase.LifecycleUseCase
	redis     *redis.Client
	secrets   map[domain.Environment]string
}

func NewWebhookHandler(lifecycle *usecase.LifecycleUseCase, rdb *redis.Client, testSecret, prodSecret string) *WebhookHandler {
	return &WebhookHandler{
		lifecycle: lifecycle,
		redis:     rdb,
		secrets: map[domain.Environment]string{
			domain.EnvTest: testSecret,
			domain.EnvProd: prodSecret,
		},
	}
}

func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	env := middleware.EnvironmentFrom(c)

	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	if err := billing.VerifySignature(payload, c.GetHeader("Stripe-Signature"), h.secrets[env], billing.DefaultTolerance); err != nil {
		log.Printf("webhook: signature rejected: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	var event billing.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event payload"})
		return
	}

	// Дедупликация повторных доставок. Только оптимизация: сами
	// обработчики идемпотентны, потеря ключа ничего не ломает.
	if event.ID != "" && h.redis != nil {
		set, err := h.redis.SetNX(c, "stripe_event:"+string(env)+":"+event.ID, 1, 24*time.Hour).Result()
		if err == nil && !set {
			c.JSON(http.StatusOK, gin.H{"received": true, "duplicate": true})
			return
		}
	}

	switch event.Type {
	case billing.EventCheckoutCompleted:
		h.handleCheckoutCompleted(c, env, event)

	case billing.EventChargeRefunded:
		var charge billing.Charge
		if err := json.Unmarshal(event.Data.Object, &charge); err != nil || charge.PaymentIntent == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed charge payload"})
			return
		}
		h.apply(c, "refund", h.lifecycle.HandleRefund(c.Request.Context(), env, charge.PaymentIntent))

	case billing.EventSubscriptionUpdated:
		var sub billing.Subscription
		if err := json.Unmarshal(event.Data.Object, &sub); err != nil || sub.ID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed subscription payload"})
			return
		}
		h.apply(c, "subscription update", h.lifecycle.HandleSubscriptionUpdated(c.Request.Context(), env, sub.ID, sub.CancelAtPeriodEnd))

	case billing.EventSubscriptionDeleted:
		var sub billing.Subscription
		if err := json.Unmarshal(event.Data.Object, &sub); err != nil || sub.ID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed subscription payload"})
			return
		}
		cancelledAt := time.Now().UTC()
		if sub.CanceledAt > 0 {
			cancelledAt = time.Unix(sub.CanceledAt, 0).UTC()
		}
		h.apply(c, "subscription deletion", h.lifecycle.HandleSubscriptionDeleted(c.Request.Context(), env, sub.ID, cancelledAt))

	case billing.EventInvoicePaid:
		var inv billing.Invoice
		if err := json.Unmarshal(event.Data.Object, &inv); err != nil || inv.Subscription == "" {
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
		var periodEnd *time.Time
		if inv.PeriodEnd > 0 {
			t := time.Unix(inv.PeriodEnd, 0).UTC()
			periodEnd = &t
		}
		h.apply(c, "invoice paid", h.lifecycle.HandleInvoicePaid(c.Request.Context(), env, inv.Subscription, periodEnd))

	case billing.EventInvoiceFailed:
		// Лицензию за неуплату сразу не гасим, биллинг сам доведет
		// подписку до subscription.deleted после ретраев.
		log.Printf("webhook: payment failed event received")
		c.JSON(http.StatusOK, gin.H{"received": true})

	default:
		log.Printf("webhook: unhandled event type %s", event.Type)
		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}

func (h *WebhookHandler) handleCheckoutCompleted(c *gin.Context, env domain.Environment, event billing.Event) {
	var session billing.CheckoutSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed session payload"})
		return
	}

	if session.PaymentStatus != "paid" {
		log.Printf("webhook: checkout %s not paid yet (%s)", session.ID, session.PaymentStatus)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	deviceID := session.ClientReferenceID
	if deviceID == "" {
		deviceID = session.Metadata["deviceId"]
	}
	deviceName := session.Metadata["deviceName"]
	if deviceName == "" {
		deviceName = "Unnamed device"
	}

	if session.CustomerDetails.Email == "" || deviceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required checkout data"})
		return
	}

	res, err := h.lifecycle.HandleCheckoutCompleted(c.Request.Context(), env, usecase.CheckoutEvent{
		Email:          session.CustomerDetails.Email,
		DeviceID:       deviceID,
		DeviceName:     deviceName,
		CustomerID:     session.Customer,
		PaymentID:      session.PaymentIntent,
		SubscriptionID: session.Subscription,
	})
	if err != nil {
		log.Printf("webhook: checkout processing failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process checkout"})
		return
	}

	if res.Skipped {
		c.JSON(http.StatusOK, gin.H{"received": true, "message": res.Reason})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// Ненайденная лицензия — не повод для ретраев биллинга: отвечаем 200,
// но проблему фиксируем в ответе и логе.
func (h *WebhookHandler) apply(c *gin.Context, op string, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"received": true})
	case errors.Is(err, domain.ErrLicenseNotFound):
		log.Printf("webhook: %s: license not found", op)
		c.JSON(http.StatusOK, gin.H{"received": true, "warning": "license not found"})
	default:
		log.Printf("webhook: %s failed: %v", op, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to apply event"})
	}
}
