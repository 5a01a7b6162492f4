package routes

import (
	"context"
	"log"
	"os"
	"time"

	"gatherly-server/services"
	"gatherly-server/storage"
	"gatherly-server/utils"

	"github.com/kataras/iris/v12"
)

// paymentWebhookEvent is the processor's delivery envelope. Deliveries are
// at-least-once; the handlers behind this endpoint are idempotent.
type paymentWebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Metadata services.CheckoutMetadata `json:"metadata"`
	} `json:"data"`
}

// PaymentWebhook receives payment.succeeded and checkout expiry events from
// the processor. Redis deduplication is best-effort; the engine's
// conditional updates are the real idempotency guarantee.
func PaymentWebhook(ctx iris.Context) {
	if secret := os.Getenv("PAYMENTS_WEBHOOK_SECRET"); secret != "" {
		if ctx.GetHeader("X-Webhook-Secret") != secret {
			ctx.StatusCode(iris.StatusUnauthorized)
			ctx.JSON(iris.Map{"message": "invalid webhook secret"})
			return
		}
	}

	var event paymentWebhookEvent
	if err := ctx.ReadJSON(&event); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}
	if event.ID == "" || event.Data.Metadata.EventID == 0 || event.Data.Metadata.UserID == 0 {
		utils.JSONError(ctx, iris.StatusBadRequest, "bad_webhook", "missing event id or metadata")
		return
	}

	if alreadyDelivered(event.ID) {
		ctx.JSON(iris.Map{"success": true, "duplicate": true})
		return
	}

	meta := event.Data.Metadata
	var err error
	switch event.Type {
	case "payment.succeeded":
		err = participation.ConfirmPayment(meta.EventID, meta.UserID)
	case "payment.expired", "checkout.session.expired":
		err = participation.AbandonPayment(meta.EventID, meta.UserID)
	default:
		log.Printf("ignoring unhandled payment webhook type %q (%s)", event.Type, event.ID)
		ctx.JSON(iris.Map{"success": true, "ignored": true})
		return
	}
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	ctx.JSON(iris.Map{"success": true})
}

// alreadyDelivered marks the webhook id as seen. A Redis outage degrades to
// no deduplication, which the engine tolerates.
func alreadyDelivered(webhookID string) bool {
	if storage.Redis == nil {
		return false
	}
	set, err := storage.Redis.SetNX(context.Background(), "payments:webhook:"+webhookID, "1", 48*time.Hour).Result()
	if err != nil {
		log.Printf("webhook dedupe unavailable: %v", err)
		return false
	}
	return !set
}
