package schedule

import (
	"go-qbsync/internal/common/api"
	"go-qbsync/internal/config"
	"go-qbsync/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type ScheduleApi struct {
	controller *Controller
	config     *config.Config
}

func NewScheduleApi(controller *Controller, config *config.Config) api.Route {
	return &ScheduleApi{
		controller: controller,
		config:     config,
	}
}

// Setup registers schedule routes
func (h *ScheduleApi) Setup(app *fiber.App) {
	schedules := app.Group("/api/schedules", middleware.AuthMiddleware(h.config.SkipAuth))

	schedules.Get("/", h.controller.GetStatus)
	schedules.Put("/:provider", h.controller.UpdateConfig)
	schedules.Post("/:provider/run", h.controller.RunNow)
	schedules.Post("/:provider/recommendations/:type/apply", h.controller.ApplyRecommendation)
}
