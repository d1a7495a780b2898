package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/bca-library/services"
	"github.com/sahilchouksey/bca-library/state"
	"github.com/sahilchouksey/bca-library/utils/middleware"
	"github.com/sahilchouksey/bca-library/utils/response"
)

// Me handles GET /api/v1/auth/me. Anonymous requests get the anonymous state.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	return response.Success(c, sessionResponse(c))
}

// UpdateProfile handles PUT /api/v1/auth/profile
func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	var req services.ProfileUpdate
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	appState := middleware.StateOf(c)
	if err := appState.UpdateProfile(c.UserContext(), req); err != nil {
		if errors.Is(err, state.ErrNoUser) {
			return response.Unauthorized(c, state.MsgNoUser)
		}
		return response.FromError(c, err)
	}

	return response.SuccessWithMessage(c, state.MsgProfileUpdated, sessionResponse(c))
}

// RepairProfile handles POST /api/v1/auth/profile/repair for sessions whose
// profile is missing
func (h *AuthHandler) RepairProfile(c *fiber.Ctx) error {
	var req services.ProfileInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	appState := middleware.StateOf(c)
	if err := appState.RepairProfile(c.UserContext(), req); err != nil {
		if errors.Is(err, state.ErrNoUser) {
			return response.Unauthorized(c, state.MsgNoUser)
		}
		return response.FromError(c, err)
	}

	return response.SuccessWithMessage(c, state.MsgProfileUpdated, sessionResponse(c))
}
