package flow

import (
	"decor-crm/internal/config"
	"decor-crm/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type FlowApi struct {
	controller *FlowController
	config     *config.Config
}

func NewFlowApi(controller *FlowController, config *config.Config) *FlowApi {
	return &FlowApi{
		controller: controller,
		config:     config,
	}
}

func (h *FlowApi) Setup(app *fiber.App) {
	flows := app.Group("/api/flows", middleware.AuthMiddleware(h.config.SkipAuth))

	flows.Get("/", h.controller.ListFlows)
	flows.Get("/:id", h.controller.GetFlow)
	flows.Post("/", middleware.AdminOnly(), h.controller.CreateFlow)
	flows.Put("/:id", middleware.AdminOnly(), h.controller.UpdateFlow)
	flows.Delete("/:id", middleware.AdminOnly(), h.controller.DeleteFlow)
}
