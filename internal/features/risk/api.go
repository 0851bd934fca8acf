package risk

import (
	"decor-crm/internal/config"
	"decor-crm/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type RiskApi struct {
	controller *RiskController
	config     *config.Config
}

func NewRiskApi(controller *RiskController, config *config.Config) *RiskApi {
	return &RiskApi{
		controller: controller,
		config:     config,
	}
}

func (h *RiskApi) Setup(app *fiber.App) {
	risk := app.Group("/api/risk", middleware.AuthMiddleware(h.config.SkipAuth))

	risk.Post("/evaluate", h.controller.EvaluateRisk)
}
