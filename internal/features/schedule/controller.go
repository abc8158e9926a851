package schedule

import (
	"errors"

	"go-qbsync/internal/features/history"

	"github.com/gofiber/fiber/v2"
)

type Controller struct {
	Manager Manager
}

func NewController(manager Manager) *Controller {
	return &Controller{Manager: manager}
}

// GetStatus godoc
// @Summary      Schedule status aggregate
// @Description  Schedules, recommendations, recent history and performance metrics
// @Tags         schedules
// @Produce      json
// @Success      200  {object}  schedule.StatusReport
// @Router       /schedules [get]
func (ctrl *Controller) GetStatus(c *fiber.Ctx) error {
	report, err := ctrl.Manager.Status(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(report)
}

// UpdateConfig godoc
// @Summary      Mutate a provider's schedule
// @Tags         schedules
// @Accept       json
// @Produce      json
// @Param        provider  path  string                  true  "Provider name"
// @Param        body      body  schedule.PartialConfig  true  "Fields to change"
// @Success      200  {object}  map[string]interface{}
// @Router       /schedules/{provider} [put]
func (ctrl *Controller) UpdateConfig(c *fiber.Ctx) error {
	provider := c.Params("provider")

	var partial PartialConfig
	if err := c.BodyParser(&partial); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	cfg, err := ctrl.Manager.UpdateConfig(c.Context(), provider, partial)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Schedule updated successfully",
		"data":    cfg,
	})
}

// RunNow godoc
// @Summary      Trigger an immediate out-of-band sync
// @Tags         schedules
// @Produce      json
// @Param        provider  path  string  true  "Provider name"
// @Success      202  {object}  map[string]interface{}
// @Router       /schedules/{provider}/run [post]
func (ctrl *Controller) RunNow(c *fiber.Ctx) error {
	provider := c.Params("provider")

	ctrl.Manager.RunNow(provider)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "Sync triggered",
	})
}

// ApplyRecommendation godoc
// @Summary      Apply a schedule-tuning recommendation
// @Tags         schedules
// @Produce      json
// @Param        provider  path  string  true  "Provider name"
// @Param        type      path  string  true  "Recommendation type"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /schedules/{provider}/recommendations/{type}/apply [post]
func (ctrl *Controller) ApplyRecommendation(c *fiber.Ctx) error {
	provider := c.Params("provider")
	recType := history.RecommendationType(c.Params("type"))

	cfg, err := ctrl.Manager.ApplyRecommendation(c.Context(), provider, recType)
	if err != nil {
		if errors.Is(err, history.ErrRecommendationNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Recommendation no longer exists; refresh and retry",
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Recommendation applied",
		"data":    cfg,
	})
}
