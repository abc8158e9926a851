package sync

import (
	"go-qbsync/internal/features/mapping"

	"github.com/gofiber/fiber/v2"
)

type Controller struct {
	Executor    Executor
	MappingRepo mapping.Repository
}

func NewController(executor Executor, mappingRepo mapping.Repository) *Controller {
	return &Controller{
		Executor:    executor,
		MappingRepo: mappingRepo,
	}
}

// RunSync godoc
// @Summary      Run a sync pass for one entity type
// @Description  Pull, push or bidirectional sync for a provider/entity type pair
// @Tags         sync
// @Produce      json
// @Param        provider    path   string  true   "Provider name"
// @Param        entityType  path   string  true   "Entity type (customer, product, invoice)"
// @Param        direction   query  string  false  "pull | push | bidirectional"
// @Success      200  {object}  sync.SyncResult
// @Router       /sync/{provider}/{entityType}/run [post]
func (ctrl *Controller) RunSync(c *fiber.Ctx) error {
	provider := c.Params("provider")
	entityType := c.Params("entityType")

	direction := Direction(c.Query("direction", string(DirectionBidirectional)))
	switch direction {
	case DirectionPull, DirectionPush, DirectionBidirectional:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "direction must be pull, push or bidirectional",
		})
	}

	result, err := ctrl.Executor.Sync(c.Context(), provider, entityType, direction)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
			"data":  result,
		})
	}

	return c.JSON(fiber.Map{
		"message": "Sync completed",
		"data":    result,
	})
}

// ListMappings godoc
// @Summary      Inspect external id mappings for a provider
// @Tags         sync
// @Produce      json
// @Param        provider  path   string  true   "Provider name"
// @Param        limit     query  int     false  "Max rows"
// @Success      200  {object}  map[string]interface{}
// @Router       /sync/mappings/{provider} [get]
func (ctrl *Controller) ListMappings(c *fiber.Ctx) error {
	provider := c.Params("provider")
	limit := int64(c.QueryInt("limit", 100))

	mappings, err := ctrl.MappingRepo.ListByProvider(c.Context(), provider, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"data": mappings,
	})
}
