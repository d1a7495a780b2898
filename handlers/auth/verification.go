package auth

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/bca-library/utils/middleware"
	"github.com/sahilchouksey/bca-library/utils/response"
)

// VerifyEmailRequest carries the values of the emailed verification link
type VerifyEmailRequest struct {
	UserID string `json:"userId"`
	Secret string `json:"secret"`
}

// SendVerification handles POST /api/v1/auth/verify/send
func (h *AuthHandler) SendVerification(c *fiber.Ctx) error {
	token := middleware.StateOf(c).Token()
	if err := h.authService.SendVerification(c.UserContext(), token); err != nil {
		return response.FromError(c, err)
	}

	return response.SuccessWithMessage(c, "Verification email sent", nil)
}

// VerifyEmail handles POST /api/v1/auth/verify
func (h *AuthHandler) VerifyEmail(c *fiber.Ctx) error {
	var req VerifyEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if req.UserID == "" || req.Secret == "" {
		return response.BadRequest(c, "Invalid or expired verification link")
	}

	if err := h.authService.VerifyEmail(c.UserContext(), req.UserID, req.Secret); err != nil {
		return response.FromError(c, err)
	}

	return response.SuccessWithMessage(c, "Email verified", nil)
}
