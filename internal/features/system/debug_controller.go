package system

import (
	"go-qbsync/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

type DebugController struct{}

func NewDebugController() *DebugController {
	return &DebugController{}
}

// GetCurrentUser godoc
// @Summary      Get current operator info
// @Description  Echo the operator claims carried by the bearer token
// @Tags         debug
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /debug/me [get]
func (c *DebugController) GetCurrentUser(ctx *fiber.Ctx) error {
	claims, _ := ctx.Locals(utils.UserClaimsKey).(*utils.UserClaims)
	if claims == nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "no claims in context",
		})
	}

	return ctx.JSON(fiber.Map{
		"user_id": claims.UserID,
		"roles":   claims.Roles,
	})
}
