package settings

import (
	"decor-crm/internal/config"
	"decor-crm/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type SettingsApi struct {
	controller *SettingsController
	config     *config.Config
}

func NewSettingsApi(controller *SettingsController, config *config.Config) *SettingsApi {
	return &SettingsApi{
		controller: controller,
		config:     config,
	}
}

func (h *SettingsApi) Setup(app *fiber.App) {
	settings := app.Group("/api/settings", middleware.AuthMiddleware(h.config.SkipAuth))

	settings.Get("/", h.controller.GetSettings)
	settings.Put("/", middleware.AdminOnly(), h.controller.UpdateSettings)
}
