package escalation

import (
	"decor-crm/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

type EscalationController struct {
	Service EscalationService
}

func NewEscalationController(service EscalationService) *EscalationController {
	return &EscalationController{Service: service}
}

// ListOverdue godoc
// @Summary List overdue approval tasks
// @Description Pending tasks past their SLA deadline for the caller's tenant
// @Tags escalations
// @Produce json
// @Success 200 {array} approval.ApprovalTask
// @Router /api/escalations/overdue [get]
func (c *EscalationController) ListOverdue(ctx *fiber.Ctx) error {
	claims := ctx.Locals(utils.UserClaimsKey).(*utils.UserClaims)

	tasks, err := c.Service.ListOverdue(ctx.UserContext(), claims.TenantID)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(tasks)
}

// RunSweep godoc
// @Summary Trigger an overdue sweep immediately
// @Description The same sweep the scheduler runs, on demand
// @Tags escalations
// @Produce json
// @Success 200 {object} map[string]int
// @Router /api/escalations/sweep [post]
func (c *EscalationController) RunSweep(ctx *fiber.Ctx) error {
	count, err := c.Service.ProcessOverdue(ctx.UserContext())
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"escalated": count})
}
