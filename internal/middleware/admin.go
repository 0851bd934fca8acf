package middleware

import (
	"slices"

	"decor-crm/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

// AdminRole is the claims role that carries the admin-override capability.
const AdminRole = "admin"

// AdminOnly gates endpoints that act with elevated privilege (flow editing,
// escalation overrides). The engine itself never checks role membership; this
// is the caller-side capability check.
func AdminOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := c.Locals(utils.UserClaimsKey).(*utils.UserClaims)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		if !slices.Contains(claims.Roles, AdminRole) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Forbidden: Insufficient permissions",
			})
		}

		return c.Next()
	}
}

// IsAdmin reports whether the request carries the admin role.
func IsAdmin(c *fiber.Ctx) bool {
	claims, ok := c.Locals(utils.UserClaimsKey).(*utils.UserClaims)
	return ok && slices.Contains(claims.Roles, AdminRole)
}
