package history

import (
	"github.com/gofiber/fiber/v2"
)

type Controller struct {
	Engine *Engine
}

func NewController(engine *Engine) *Controller {
	return &Controller{Engine: engine}
}

// ListHistory godoc
// @Summary      Recent sync executions
// @Tags         history
// @Produce      json
// @Param        provider  query  string  false  "Filter by provider"
// @Param        limit     query  int     false  "Max entries"
// @Success      200  {object}  map[string]interface{}
// @Router       /sync/history [get]
func (ctrl *Controller) ListHistory(c *fiber.Ctx) error {
	provider := c.Query("provider")
	limit := c.QueryInt("limit", 50)

	return c.JSON(fiber.Map{
		"data": ctrl.Engine.Entries(provider, limit),
	})
}

// ListRecommendations godoc
// @Summary      Current schedule-tuning recommendations
// @Tags         history
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /sync/recommendations [get]
func (ctrl *Controller) ListRecommendations(c *fiber.Ctx) error {
	// Refresh on demand so the caller never sees a stale set
	recs, err := ctrl.Engine.Analyze(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"data": recs,
	})
}

// ExportHistory godoc
// @Summary      Download sync history as xlsx
// @Tags         history
// @Produce      application/octet-stream
// @Success      200  {file}  binary
// @Router       /sync/history/export [get]
func (ctrl *Controller) ExportHistory(c *fiber.Ctx) error {
	data, err := ctrl.Engine.ExportToExcel()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="sync_history.xlsx"`)
	return c.Send(data)
}
