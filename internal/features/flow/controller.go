package flow

import (
	"decor-crm/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

type FlowController struct {
	Service FlowService
}

func NewFlowController(service FlowService) *FlowController {
	return &FlowController{Service: service}
}

// CreateFlow godoc
// @Summary Create an approval flow
// @Description Create an approval flow definition for one entity type
// @Tags flows
// @Accept json
// @Produce json
// @Param flow body ApprovalFlow true "Flow definition"
// @Success 201 {object} map[string]string "Flow created successfully"
// @Failure 400 {object} map[string]string "Invalid request body"
// @Router /api/flows [post]
func (c *FlowController) CreateFlow(ctx *fiber.Ctx) error {
	claims := ctx.Locals(utils.UserClaimsKey).(*utils.UserClaims)

	var input ApprovalFlow
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	input.TenantID = claims.TenantID

	if err := c.Service.CreateFlow(ctx.UserContext(), input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Flow created successfully"})
}

// UpdateFlow godoc
// @Summary Update an approval flow
// @Description Running approvals keep their snapshot; edits affect new ones only
// @Tags flows
// @Accept json
// @Produce json
// @Param id path string true "Flow ID"
// @Param flow body ApprovalFlow true "Flow definition"
// @Success 200 {object} map[string]string "Flow updated successfully"
// @Router /api/flows/{id} [put]
func (c *FlowController) UpdateFlow(ctx *fiber.Ctx) error {
	claims := ctx.Locals(utils.UserClaimsKey).(*utils.UserClaims)

	var input ApprovalFlow
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := c.Service.UpdateFlow(ctx.UserContext(), claims.TenantID, ctx.Params("id"), input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"message": "Flow updated successfully"})
}

// DeleteFlow godoc
// @Summary Delete an approval flow
// @Tags flows
// @Param id path string true "Flow ID"
// @Success 204 {object} nil "No Content"
// @Router /api/flows/{id} [delete]
func (c *FlowController) DeleteFlow(ctx *fiber.Ctx) error {
	claims := ctx.Locals(utils.UserClaimsKey).(*utils.UserClaims)

	if err := c.Service.DeleteFlow(ctx.UserContext(), claims.TenantID, ctx.Params("id")); err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

// GetFlow godoc
// @Summary Get a flow by ID
// @Tags flows
// @Produce json
// @Param id path string true "Flow ID"
// @Success 200 {object} ApprovalFlow
// @Failure 404 {object} map[string]string "Flow not found"
// @Router /api/flows/{id} [get]
func (c *FlowController) GetFlow(ctx *fiber.Ctx) error {
	claims := ctx.Locals(utils.UserClaimsKey).(*utils.UserClaims)

	flow, err := c.Service.GetFlow(ctx.UserContext(), claims.TenantID, ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if flow == nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Flow not found"})
	}
	return ctx.JSON(flow)
}

// ListFlows godoc
// @Summary List tenant flows
// @Tags flows
// @Produce json
// @Success 200 {array} ApprovalFlow
// @Router /api/flows [get]
func (c *FlowController) ListFlows(ctx *fiber.Ctx) error {
	claims := ctx.Locals(utils.UserClaimsKey).(*utils.UserClaims)

	flows, err := c.Service.ListFlows(ctx.UserContext(), claims.TenantID)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(flows)
}
