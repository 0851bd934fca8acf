package risk

import (
	"context"

	"decor-crm/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

// PolicyProvider is satisfied by the settings service; declared here so the
// settings package can depend on risk for the Policy type without a cycle.
type PolicyProvider interface {
	GetRiskPolicy(ctx context.Context, tenantID string) (Policy, error)
}

type RiskController struct {
	Policies PolicyProvider
}

func NewRiskController(policies PolicyProvider) *RiskController {
	return &RiskController{Policies: policies}
}

// EvaluateRisk godoc
// @Summary Evaluate the risk gate for a draft entity
// @Description Returns whether the described change needs approval or is hard-blocked
// @Tags risk
// @Accept json
// @Produce json
// @Param snapshot body EntitySnapshot true "Entity financial snapshot"
// @Success 200 {object} Result
// @Failure 400 {object} map[string]string "Invalid request body"
// @Router /api/risk/evaluate [post]
func (c *RiskController) EvaluateRisk(ctx *fiber.Ctx) error {
	claims := ctx.Locals(utils.UserClaimsKey).(*utils.UserClaims)

	var snapshot EntitySnapshot
	if err := ctx.BodyParser(&snapshot); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	policy, err := c.Policies.GetRiskPolicy(ctx.UserContext(), claims.TenantID)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.JSON(Evaluate(snapshot, policy))
}
