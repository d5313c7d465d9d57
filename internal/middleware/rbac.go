package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/campuscode-api/internal/models"
)

func passThrough(c *fiber.Ctx) error {
	return c.Next()
}

// RequireUser rejects requests without an authenticated user.
func RequireUser() fiber.Handler {
	return WithAuth(passThrough, AuthOptions{})
}

// RequireCapability ensures the authenticated user's role grants the capability.
func RequireCapability(capability models.Capability) fiber.Handler {
	return WithAuth(passThrough, AuthOptions{Capability: capability})
}

func normalizeRoleValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case models.Role:
		return strings.ToLower(strings.TrimSpace(string(v)))
	case fmt.Stringer:
		return strings.ToLower(strings.TrimSpace(v.String()))
	default:
		if value == nil {
			return ""
		}
		return strings.ToLower(strings.TrimSpace(fmt.Sprintf("%v", value)))
	}
}
