package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/bca-library/utils/logger"
	"github.com/sahilchouksey/bca-library/utils/response"
)

// RequireAdmin middleware ensures the user has admin role. It must run after
// AuthMiddleware.Required.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := UserOf(c)
		if user == nil {
			return response.Unauthorized(c, "Authentication required")
		}

		if !user.IsAdmin() {
			logger.Warn().
				Str("user_id", user.ID).
				Str("path", c.Path()).
				Msg("non-admin user denied")
			return response.Forbidden(c, "Admin access required")
		}

		return c.Next()
	}
}
