package auth

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/bca-library/model"
	"github.com/sahilchouksey/bca-library/services"
	"github.com/sahilchouksey/bca-library/state"
	"github.com/sahilchouksey/bca-library/utils/middleware"
	"github.com/sahilchouksey/bca-library/utils/response"
	"github.com/sahilchouksey/bca-library/utils/validation"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	authService          *services.AuthService
	bruteForceProtection *middleware.BruteForceProtection
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *services.AuthService, bruteForceProtection *middleware.BruteForceProtection) *AuthHandler {
	return &AuthHandler{
		authService:          authService,
		bruteForceProtection: bruteForceProtection,
	}
}

// SessionResponse is the session state returned by every auth endpoint
type SessionResponse struct {
	Status  string         `json:"status"`
	Token   string         `json:"token,omitempty"`
	User    *model.User    `json:"user"`
	Notices []state.Notice `json:"notices,omitempty"`
}

func sessionResponse(c *fiber.Ctx) SessionResponse {
	appState := middleware.StateOf(c)
	res := SessionResponse{Status: services.StatusAnonymous}
	if appState != nil {
		res.Status = appState.Status()
		res.Token = appState.Token()
		res.User = appState.User()
	}
	if notices := middleware.NoticesOf(c); notices != nil {
		res.Notices = notices.Drain()
	}
	return res
}

// sessionError renders err. A session that survived the failure, such as an
// account whose profile could not be created, is returned as error details.
func sessionError(c *fiber.Ctx, err error) error {
	appState := middleware.StateOf(c)
	if appState == nil || appState.Status() != services.StatusAuthenticatedNoProfile {
		return response.FromError(c, err)
	}

	status := services.StatusOf(err)
	message := err.Error()
	return response.ErrorWithDetails(c, status, message, response.CodeFor(status), sessionResponse(c))
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req validation.RegisterForm
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	appState := middleware.StateOf(c)
	if err := appState.Register(c.UserContext(), req); err != nil {
		return sessionError(c, err)
	}

	return response.Created(c, state.MsgRegisterSuccess, sessionResponse(c))
}

// PasswordStrengthRequest is the body of POST /api/v1/auth/password-strength
type PasswordStrengthRequest struct {
	Password string `json:"password"`
}

// PasswordStrength grades a password for the sign-up form
func (h *AuthHandler) PasswordStrength(c *fiber.Ctx) error {
	var req PasswordStrengthRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	return response.Success(c, fiber.Map{"strength": validation.PasswordStrength(req.Password)})
}
