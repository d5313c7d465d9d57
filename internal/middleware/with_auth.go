package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/campuscode-api/internal/models"
	"github.com/noah-isme/campuscode-api/internal/utils"
)

// AuthOptions configures the WithAuth helper.
type AuthOptions struct {
	// Capability, when set, must be granted by the caller's role.
	Capability     models.Capability
	AllowAnonymous bool
}

// WithAuth wraps a handler with authentication and capability guards. It
// expects JWTProtected to have populated user_id and user_role.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authenticated := c.Locals("user_id") != nil
		if !authenticated && (!opts.AllowAnonymous || opts.Capability != "") {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}

		if opts.Capability != "" {
			role := models.ParseRole(normalizeRoleValue(c.Locals("user_role")))
			if !role.Can(opts.Capability) {
				return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", fiber.Map{
					"capability": opts.Capability,
				})
			}
		}

		return handler(c)
	}
}
