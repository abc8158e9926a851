package monitor

import (
	"log"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type Controller struct {
	Service Service
}

func NewController(service Service) *Controller {
	return &Controller{Service: service}
}

// GetHealth godoc
// @Summary      Health check aggregate
// @Description  Per-provider sync health, webhook stats and active alert count
// @Tags         monitor
// @Produce      json
// @Success      200  {object}  monitor.HealthReport
// @Router       /health [get]
func (ctrl *Controller) GetHealth(c *fiber.Ctx) error {
	report := ctrl.Service.Health()

	status := fiber.StatusOK
	if report.Status == "stalled" {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(report)
}

// ListAlerts godoc
// @Summary      List raised alerts
// @Tags         monitor
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /monitor/alerts [get]
func (ctrl *Controller) ListAlerts(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"data": ctrl.Service.Alerts(),
	})
}

// HandleEventStream streams monitor events to a dashboard over websocket.
// The connection is registered as a broadcast subscriber; the read loop only
// exists to notice the peer going away.
func (ctrl *Controller) HandleEventStream(c *websocket.Conn) {
	ctrl.Service.Subscribe(c)
	defer ctrl.Service.Unsubscribe(c)

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			log.Println("monitor stream closed:", err)
			break
		}
	}
}
