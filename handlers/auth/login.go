package auth

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/bca-library/services"
	"github.com/sahilchouksey/bca-library/state"
	"github.com/sahilchouksey/bca-library/utils/middleware"
	"github.com/sahilchouksey/bca-library/utils/response"
	"github.com/sahilchouksey/bca-library/utils/validation"
)

// HeaderAttemptsRemaining tells a client how many failed logins are left
// before the address is locked out
const HeaderAttemptsRemaining = "X-Login-Attempts-Remaining"

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req validation.LoginForm
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	ctx := c.UserContext()
	ip := services.ClientIP(ctx)

	appState := middleware.StateOf(c)
	if err := appState.Login(ctx, req.Email, req.Password); err != nil {
		if services.StatusOf(err) == http.StatusUnauthorized {
			h.bruteForceProtection.RecordFailedAttempt(ctx, ip)
			if remaining, err := h.bruteForceProtection.RemainingAttempts(ctx, ip); h.bruteForceProtection != nil && err == nil {
				c.Set(HeaderAttemptsRemaining, strconv.Itoa(remaining))
			}
		}
		return sessionError(c, err)
	}

	h.bruteForceProtection.RecordSuccessfulAttempt(ctx, ip)
	return response.SuccessWithMessage(c, state.MsgLoginSuccess, sessionResponse(c))
}

// Logout handles POST /api/v1/auth/logout. Only the current session ends.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	appState := middleware.StateOf(c)
	if err := appState.Logout(c.UserContext()); err != nil {
		return response.FromError(c, err)
	}

	return response.SuccessWithMessage(c, state.MsgLogoutSuccess, sessionResponse(c))
}
