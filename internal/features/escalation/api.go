package escalation

import (
	"decor-crm/internal/config"
	"decor-crm/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type EscalationApi struct {
	controller *EscalationController
	config     *config.Config
}

func NewEscalationApi(controller *EscalationController, config *config.Config) *EscalationApi {
	return &EscalationApi{
		controller: controller,
		config:     config,
	}
}

func (h *EscalationApi) Setup(app *fiber.App) {
	escalations := app.Group("/api/escalations", middleware.AuthMiddleware(h.config.SkipAuth), middleware.AdminOnly())

	escalations.Get("/overdue", h.controller.ListOverdue)
	escalations.Post("/sweep", h.controller.RunSweep)
}
