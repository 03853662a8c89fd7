package middleware

import (
	"github.com/arzan03/cloudvault/internal/apperrors"
	"github.com/arzan03/cloudvault/internal/models"
	"github.com/gofiber/fiber/v2"
)

// AdminOnly lets only admins through. It must run after Auth.
func AdminOnly(c *fiber.Ctx) error {
	role, _ := c.Locals(localRole).(string)
	if role == "" {
		return apperrors.Authentication("not authenticated")
	}
	if role != models.RoleAdmin {
		return apperrors.Forbidden("access denied, admins only")
	}
	return c.Next()
}
