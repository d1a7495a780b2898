package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/bca-library/model"
	"github.com/sahilchouksey/bca-library/services"
	"github.com/sahilchouksey/bca-library/state"
	"github.com/sahilchouksey/bca-library/utils/response"
)

// Locals keys set by the session middleware
const (
	LocalState   = "state"
	LocalNotices = "notices"
)

// AuthMiddleware restores the session of every request into a state.AppState
type AuthMiddleware struct {
	auth state.Auth
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(auth state.Auth) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// Session resolves the bearer token, if any, and stores the request's
// AppState in locals. It never rejects a request.
func (m *AuthMiddleware) Session() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := services.WithClientIP(c.UserContext(), c.IP())
		c.SetUserContext(ctx)

		notices := &state.Notices{}
		appState := state.New(m.auth, notices)
		appState.Init(ctx, BearerToken(c))

		c.Locals(LocalState, appState)
		c.Locals(LocalNotices, notices)
		return c.Next()
	}
}

// Required rejects requests without a signed-in user that has a profile
func (m *AuthMiddleware) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		appState := StateOf(c)
		if appState == nil {
			return response.Unauthorized(c, "Missing authorization token")
		}

		switch appState.Status() {
		case services.StatusAuthenticated:
			return c.Next()
		case services.StatusAuthenticatedNoProfile:
			return response.Forbidden(c, "Please complete your profile to continue")
		default:
			return response.Unauthorized(c, "Authentication failed. Please log in again.")
		}
	}
}

// SessionRequired rejects anonymous requests but lets sessions without a
// profile through, so they can repair it or log out.
func (m *AuthMiddleware) SessionRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		appState := StateOf(c)
		if appState == nil || appState.Status() == services.StatusAnonymous {
			return response.Unauthorized(c, "Authentication failed. Please log in again.")
		}
		return c.Next()
	}
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header
func BearerToken(c *fiber.Ctx) string {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// StateOf returns the AppState stored by Session
func StateOf(c *fiber.Ctx) *state.AppState {
	appState, _ := c.Locals(LocalState).(*state.AppState)
	return appState
}

// NoticesOf returns the notices collected for the request
func NoticesOf(c *fiber.Ctx) *state.Notices {
	notices, _ := c.Locals(LocalNotices).(*state.Notices)
	return notices
}

// UserOf returns the signed-in user, or nil
func UserOf(c *fiber.Ctx) *model.User {
	appState := StateOf(c)
	if appState == nil {
		return nil
	}
	return appState.User()
}
