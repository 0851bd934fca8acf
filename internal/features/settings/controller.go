package settings

import (
	"decor-crm/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

type SettingsController struct {
	Service SettingsService
}

func NewSettingsController(service SettingsService) *SettingsController {
	return &SettingsController{Service: service}
}

// GetSettings godoc
// @Summary Get tenant settings
// @Tags settings
// @Produce json
// @Success 200 {object} TenantSettings
// @Router /api/settings [get]
func (c *SettingsController) GetSettings(ctx *fiber.Ctx) error {
	claims := ctx.Locals(utils.UserClaimsKey).(*utils.UserClaims)

	settings, err := c.Service.GetSettings(ctx.UserContext(), claims.TenantID)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(settings)
}

// UpdateSettings godoc
// @Summary Update tenant settings
// @Tags settings
// @Accept json
// @Produce json
// @Param settings body TenantSettings true "Settings"
// @Success 200 {object} map[string]string
// @Router /api/settings [put]
func (c *SettingsController) UpdateSettings(ctx *fiber.Ctx) error {
	claims := ctx.Locals(utils.UserClaimsKey).(*utils.UserClaims)

	var input TenantSettings
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := c.Service.UpdateSettings(ctx.UserContext(), claims.TenantID, claims.UserID, input); err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"message": "Settings updated successfully"})
}
