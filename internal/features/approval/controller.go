package approval

import (
	"errors"
	"fmt"
	"time"

	"decor-crm/internal/middleware"
	"decor-crm/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

type ApprovalController struct {
	Service ApprovalService
}

func NewApprovalController(service ApprovalService) *ApprovalController {
	return &ApprovalController{Service: service}
}

// statusForError maps engine failures onto HTTP statuses. Conflicts (409) are
// the concurrency outcomes clients are expected to retry or refresh on.
func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return fiber.StatusForbidden
	case errors.Is(err, ErrDuplicatePending), errors.Is(err, ErrTaskAlreadyResolved), errors.Is(err, ErrApprovalNotActive):
		return fiber.StatusConflict
	case errors.Is(err, ErrNoFlowConfigured), errors.Is(err, ErrMisconfiguredFlow):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

type openApprovalRequest struct {
	EntityType string   `json:"entity_type"`
	EntityID   string   `json:"entity_id"`
	Reasons    []string `json:"reasons"`
}

type resolveTaskRequest struct {
	Comment string `json:"comment"`
}

// OpenApproval godoc
// @Summary Open an approval run
// @Description Start the configured flow for one entity; fails when one is already pending
// @Tags approvals
// @Accept json
// @Produce json
// @Param request body openApprovalRequest true "Entity reference"
// @Success 201 {object} map[string]string
// @Failure 409 {object} map[string]string "An approval is already awaiting action"
// @Failure 422 {object} map[string]string "No flow configured or flow misconfigured"
// @Router /api/approvals [post]
func (c *ApprovalController) OpenApproval(ctx *fiber.Ctx) error {
	claims := ctx.Locals(utils.UserClaimsKey).(*utils.UserClaims)

	var input openApprovalRequest
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if input.EntityType == "" || input.EntityID == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "entity_type and entity_id are required"})
	}

	id, err := c.Service.OpenApproval(ctx.UserContext(), claims.TenantID, input.EntityType, input.EntityID, claims.UserID, input.Reasons)
	if err != nil {
		return ctx.Status(statusForError(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{"approval_id": id})
}

// ApproveTask godoc
// @Summary Approve a pending task
// @Tags approvals
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body resolveTaskRequest false "Optional comment"
// @Success 200 {object} map[string]string
// @Failure 409 {object} map[string]string "This item was already processed"
// @Router /api/approvals/tasks/{id}/approve [post]
func (c *ApprovalController) ApproveTask(ctx *fiber.Ctx) error {
	return c.resolve(ctx, DecisionApprove)
}

// RejectTask godoc
// @Summary Reject a pending task
// @Description A comment is required; the whole run terminates REJECTED
// @Tags approvals
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body resolveTaskRequest true "Rejection comment"
// @Success 200 {object} map[string]string
// @Router /api/approvals/tasks/{id}/reject [post]
func (c *ApprovalController) RejectTask(ctx *fiber.Ctx) error {
	return c.resolve(ctx, DecisionReject)
}

func (c *ApprovalController) resolve(ctx *fiber.Ctx, decision Decision) error {
	claims := ctx.Locals(utils.UserClaimsKey).(*utils.UserClaims)

	var input resolveTaskRequest
	if err := ctx.BodyParser(&input); err != nil && decision == DecisionReject {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if decision == DecisionReject && input.Comment == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "a comment is required when rejecting"})
	}

	// Override lets an admin act in place of the assigned approver; it is
	// audited separately.
	override := ctx.QueryBool("override") && middleware.IsAdmin(ctx)

	err := c.Service.ResolveTask(ctx.UserContext(), claims.TenantID, ctx.Params("id"), claims.UserID, decision, input.Comment, override)
	if err != nil {
		return ctx.Status(statusForError(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"message": "Decision recorded"})
}

// CancelApproval godoc
// @Summary Cancel a pending approval run
// @Description Only the requester or an admin may cancel
// @Tags approvals
// @Param id path string true "Approval ID"
// @Success 200 {object} map[string]string
// @Router /api/approvals/{id}/cancel [post]
func (c *ApprovalController) CancelApproval(ctx *fiber.Ctx) error {
	claims := ctx.Locals(utils.UserClaimsKey).(*utils.UserClaims)

	err := c.Service.CancelApproval(ctx.UserContext(), claims.TenantID, ctx.Params("id"), claims.UserID, middleware.IsAdmin(ctx))
	if err != nil {
		return ctx.Status(statusForError(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"message": "Approval cancelled"})
}

// MyTasks godoc
// @Summary List my pending approval tasks
// @Tags approvals
// @Produce json
// @Success 200 {array} ApprovalTask
// @Router /api/approvals/my-tasks [get]
func (c *ApprovalController) MyTasks(ctx *fiber.Ctx) error {
	claims := ctx.Locals(utils.UserClaimsKey).(*utils.UserClaims)

	tasks, err := c.Service.MyPendingTasks(ctx.UserContext(), claims.TenantID, claims.UserID)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(tasks)
}

// ByEntity godoc
// @Summary List approval runs for an entity
// @Tags approvals
// @Produce json
// @Param type path string true "Entity type"
// @Param id path string true "Entity ID"
// @Success 200 {array} Approval
// @Router /api/approvals/entity/{type}/{id} [get]
func (c *ApprovalController) ByEntity(ctx *fiber.Ctx) error {
	claims := ctx.Locals(utils.UserClaimsKey).(*utils.UserClaims)

	approvals, err := c.Service.ApprovalsByEntity(ctx.UserContext(), claims.TenantID, ctx.Params("type"), ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(approvals)
}

// GetApproval godoc
// @Summary Approval detail with its task history
// @Tags approvals
// @Produce json
// @Param id path string true "Approval ID"
// @Success 200 {object} ApprovalDetail
// @Router /api/approvals/{id} [get]
func (c *ApprovalController) GetApproval(ctx *fiber.Ctx) error {
	claims := ctx.Locals(utils.UserClaimsKey).(*utils.UserClaims)

	detail, err := c.Service.GetApprovalDetail(ctx.UserContext(), claims.TenantID, ctx.Params("id"))
	if err != nil {
		return ctx.Status(statusForError(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(detail)
}

// ExportApprovals godoc
// @Summary Export completed approvals as xlsx
// @Tags approvals
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} binary
// @Router /api/approvals/export [get]
func (c *ApprovalController) ExportApprovals(ctx *fiber.Ctx) error {
	claims := ctx.Locals(utils.UserClaimsKey).(*utils.UserClaims)

	file, err := c.Service.ExportApprovals(ctx.UserContext(), claims.TenantID)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	filename := fmt.Sprintf("approvals_%s.xlsx", time.Now().Format("2006-01-02"))
	ctx.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	ctx.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))

	if err := file.Write(ctx.Response().BodyWriter()); err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return nil
}
