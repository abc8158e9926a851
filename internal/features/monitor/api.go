package monitor

import (
	"go-qbsync/internal/common/api"
	"go-qbsync/internal/config"
	"go-qbsync/internal/middleware"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type MonitorApi struct {
	controller *Controller
	config     *config.Config
}

func NewMonitorApi(controller *Controller, config *config.Config) api.Route {
	return &MonitorApi{
		controller: controller,
		config:     config,
	}
}

// Setup registers monitoring routes. The health endpoint stays open so load
// balancers can probe it; everything else sits behind the operator JWT.
func (h *MonitorApi) Setup(app *fiber.App) {
	app.Get("/api/health", h.controller.GetHealth)

	mon := app.Group("/api/monitor", middleware.AuthMiddleware(h.config.SkipAuth))
	mon.Get("/alerts", h.controller.ListAlerts)

	mon.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	mon.Get("/ws", websocket.New(h.controller.HandleEventStream))
}
