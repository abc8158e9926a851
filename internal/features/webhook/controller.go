package webhook

import (
	"errors"
	"time"

	"go-qbsync/internal/features/monitor"

	"github.com/gofiber/fiber/v2"
)

type Controller struct {
	Service Service
	Monitor monitor.Service
}

func NewController(service Service, mon monitor.Service) *Controller {
	return &Controller{
		Service: service,
		Monitor: mon,
	}
}

// HandleQuickBooks godoc
// @Summary      Receive a QuickBooks change notification
// @Description  Verifies the HMAC signature, deduplicates entity changes and triggers targeted syncs
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        intuit-signature  header  string  true  "Base64 HMAC-SHA256 of the request body"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]interface{}
// @Router       /webhooks/quickbooks [post]
func (ctrl *Controller) HandleQuickBooks(c *fiber.Ctx) error {
	signature := c.Get("intuit-signature")
	if signature == "" {
		signature = c.Get("x-intuit-signature")
	}

	started := time.Now()
	result, err := ctrl.Service.Handle(c.Context(), c.Body(), signature)
	processed := 0
	if result != nil {
		processed = result.EventsProcessed
	}
	ctrl.Monitor.RecordWebhook(time.Since(started), processed, err == nil)

	// Only deliveries that passed signature verification can raise alerts;
	// unauthenticated garbage must not be able to fill the alert buffer.
	if err != nil && !errors.Is(err, ErrInvalidSignature) {
		ctrl.Monitor.RaiseAlert(monitor.AlertWebhookFailure, "", "webhook delivery failed processing")
	} else if err == nil && result.EntityFailures > 0 {
		ctrl.Monitor.RaiseAlert(monitor.AlertWebhookFailure, "", "webhook delivery had entity sync failures")
	}

	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidSignature):
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid webhook signature",
			})
		case errors.Is(err, ErrInvalidPayload):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "malformed webhook payload",
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
	}

	return c.JSON(fiber.Map{
		"message":         "Webhook processed",
		"eventsProcessed": processed,
		"entitiesSkipped": result.EntitiesSkipped,
		"entityFailures":  result.EntityFailures,
	})
}
