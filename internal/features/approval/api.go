package approval

import (
	"decor-crm/internal/config"
	"decor-crm/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type ApprovalApi struct {
	controller *ApprovalController
	config     *config.Config
}

func NewApprovalApi(controller *ApprovalController, config *config.Config) *ApprovalApi {
	return &ApprovalApi{
		controller: controller,
		config:     config,
	}
}

func (h *ApprovalApi) Setup(app *fiber.App) {
	approvals := app.Group("/api/approvals", middleware.AuthMiddleware(h.config.SkipAuth))

	approvals.Post("/", h.controller.OpenApproval)
	approvals.Get("/my-tasks", h.controller.MyTasks)
	approvals.Get("/export", middleware.AdminOnly(), h.controller.ExportApprovals)
	approvals.Get("/entity/:type/:id", h.controller.ByEntity)
	approvals.Post("/tasks/:id/approve", h.controller.ApproveTask)
	approvals.Post("/tasks/:id/reject", h.controller.RejectTask)
	approvals.Post("/:id/cancel", h.controller.CancelApproval)
	approvals.Get("/:id", h.controller.GetApproval)
}
