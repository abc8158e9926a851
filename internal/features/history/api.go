package history

import (
	"go-qbsync/internal/common/api"
	"go-qbsync/internal/config"
	"go-qbsync/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type HistoryApi struct {
	controller *Controller
	config     *config.Config
}

func NewHistoryApi(controller *Controller, config *config.Config) api.Route {
	return &HistoryApi{
		controller: controller,
		config:     config,
	}
}

// Setup registers history routes
func (h *HistoryApi) Setup(app *fiber.App) {
	group := app.Group("/api/sync", middleware.AuthMiddleware(h.config.SkipAuth))

	group.Get("/history", h.controller.ListHistory)
	group.Get("/history/export", h.controller.ExportHistory)
	group.Get("/recommendations", h.controller.ListRecommendations)
}
