package webhook

import (
	"go-qbsync/internal/common/api"

	"github.com/gofiber/fiber/v2"
)

type WebhookApi struct {
	controller *Controller
}

func NewWebhookApi(controller *Controller) api.Route {
	return &WebhookApi{
		controller: controller,
	}
}

// Setup registers webhook routes. Callers authenticate with the HMAC
// signature, not a bearer token, so no auth middleware here.
func (h *WebhookApi) Setup(app *fiber.App) {
	webhookGroup := app.Group("/api/webhooks")

	webhookGroup.Post("/quickbooks", h.controller.HandleQuickBooks)
}
