package sync

import (
	"go-qbsync/internal/common/api"
	"go-qbsync/internal/config"
	"go-qbsync/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type SyncApi struct {
	controller *Controller
	config     *config.Config
}

func NewSyncApi(controller *Controller, config *config.Config) api.Route {
	return &SyncApi{
		controller: controller,
		config:     config,
	}
}

// Setup registers sync routes
func (h *SyncApi) Setup(app *fiber.App) {
	syncGroup := app.Group("/api/sync", middleware.AuthMiddleware(h.config.SkipAuth))

	syncGroup.Post("/:provider/:entityType/run", h.controller.RunSync)
	syncGroup.Get("/mappings/:provider", h.controller.ListMappings)
}
