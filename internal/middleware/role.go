package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/offerdesk/console-be/internal/utils"
)

func RequireRoles(allowed ...string) fiber.Handler {
	allowedSet := map[string]bool{}
	for _, r := range allowed {
		allowedSet[strings.ToLower(r)] = true
	}

	return func(c *fiber.Ctx) error {
		claims, ok := c.Locals("claims").(*utils.Claims)
		if !ok || claims == nil {
			return fiber.ErrUnauthorized
		}

		role := strings.ToLower(strings.TrimSpace(claims.Role))
		if !allowedSet[role] {
			return fiber.NewError(fiber.StatusForbidden, "forbidden: insufficient role")
		}

		return c.Next()
	}
}
