package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/offerdesk/console-be/internal/utils"
)

// SessionCookie is the JWT session cookie name.
const SessionCookie = "od_token"

// JWTFromCookie authenticates the request from the session cookie and puts
// the verified claims in request locals. An absent and an expired token are
// treated identically: both are a login requirement, never a data error.
func JWTFromCookie(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := c.Cookies(SessionCookie)
		if tokenStr == "" {
			return fiber.ErrUnauthorized
		}

		claims, err := utils.ParseJWT(secret, tokenStr)
		if err != nil {
			return fiber.ErrUnauthorized
		}

		c.Locals("claims", claims)
		return c.Next()
	}
}
