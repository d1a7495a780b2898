package auth

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/bca-library/services"
	"github.com/sahilchouksey/bca-library/utils/logger"
	"github.com/sahilchouksey/bca-library/utils/response"
)

// recoverySent is returned whether or not the email belongs to an account
const recoverySent = "If the email exists, a password reset link will be sent"

// ForgotPasswordRequest represents a password reset request
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest completes a recovery with the values of the emailed link
type ResetPasswordRequest struct {
	UserID          string `json:"userId"`
	Secret          string `json:"secret"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// ForgotPassword handles POST /api/v1/auth/forgot-password
func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req ForgotPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.authService.ForgotPassword(c.UserContext(), req.Email); err != nil {
		// Don't reveal whether the email exists
		if services.StatusOf(err) == fiber.StatusNotFound {
			logger.Debug().Msg("password recovery requested for unknown email")
			return response.SuccessWithMessage(c, recoverySent, nil)
		}
		return response.FromError(c, err)
	}

	return response.SuccessWithMessage(c, recoverySent, nil)
}

// ResetPassword handles POST /api/v1/auth/reset-password
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if req.UserID == "" || req.Secret == "" {
		return response.BadRequest(c, "Invalid or expired reset link")
	}

	err := h.authService.ResetPassword(c.UserContext(), req.UserID, req.Secret, req.Password, req.ConfirmPassword)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.SuccessWithMessage(c, "Password has been reset. Please log in with your new password.", nil)
}
