package services

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sahilchouksey/bca-library/gateway"
	"github.com/sahilchouksey/bca-library/model"
	"github.com/sahilchouksey/bca-library/utils/logger"
	"github.com/sahilchouksey/bca-library/utils/validation"
)

// Session states
const (
	StatusAnonymous              = "anonymous"
	StatusAuthenticated          = "authenticated"
	StatusAuthenticatedNoProfile = "authenticated_no_profile"
)

// AuthResult is the session state after an auth operation. A session can
// exist without a profile when profile creation failed after sign-up.
type AuthResult struct {
	Status  string           `json:"status"`
	Session *gateway.Session `json:"session,omitempty"`
	User    *model.User      `json:"user,omitempty"`
	Account *model.Account   `json:"-"`
}

// ProfileInput completes a missing profile.
type ProfileInput struct {
	Semester int    `json:"semester" validate:"min=1,max=6"`
	College  string `json:"college" validate:"max=255"`
}

// ProfileUpdate changes the editable profile fields; nil fields are kept.
type ProfileUpdate struct {
	Name     *string `json:"name" validate:"omitempty,nonblank,trimmin=2,max=255"`
	Semester *int    `json:"semester" validate:"omitempty,min=1,max=6"`
	College  *string `json:"college" validate:"omitempty,max=255"`
}

// AuthService handles sign-up, sessions and profiles.
type AuthService struct {
	accounts   gateway.AccountService
	store      gateway.DocumentStore
	collection string
	appURL     string
	validator  *validation.Validator
	log        zerolog.Logger
}

func NewAuthService(accounts gateway.AccountService, store gateway.DocumentStore, collections gateway.Collections, appURL string) *AuthService {
	return &AuthService{
		accounts:   accounts,
		store:      store,
		collection: collections.Users,
		appURL:     strings.TrimRight(appURL, "/"),
		validator:  validation.NewValidator(),
		log:        logger.Component("auth"),
	}
}

// Register creates the account, signs it in and creates its profile.
func (s *AuthService) Register(ctx context.Context, form validation.RegisterForm) (*AuthResult, error) {
	if err := s.validator.Validate(form); err != nil {
		return &AuthResult{Status: StatusAnonymous}, err
	}

	account, err := s.accounts.Create(ctx, "", form.Email, form.Password, strings.TrimSpace(form.Name))
	if err != nil {
		return &AuthResult{Status: StatusAnonymous}, fail(s.log, "create account", err)
	}

	session, err := s.accounts.CreateEmailSession(ctx, form.Email, form.Password)
	if err != nil {
		return &AuthResult{Status: StatusAnonymous}, fail(s.log, "create session", err)
	}

	user, err := s.createProfile(ctx, account, form.Semester, form.College)
	if err != nil {
		return &AuthResult{Status: StatusAuthenticatedNoProfile, Session: session, Account: account}, err
	}

	s.log.Info().Str("user_id", user.ID).Msg("user registered")
	return &AuthResult{Status: StatusAuthenticated, Session: session, User: user, Account: account}, nil
}

func (s *AuthService) createProfile(ctx context.Context, account *model.Account, semester int, college string) (*model.User, error) {
	user := &model.User{
		ID:        account.ID,
		Name:      account.Name,
		Email:     account.Email,
		Semester:  semester,
		Role:      model.RoleStudent,
		College:   strings.TrimSpace(college),
		Verified:  false,
		CreatedAt: time.Now(),
	}

	if err := s.store.CreateDocument(ctx, s.collection, user); err != nil {
		return nil, fail(s.log, "create profile", err)
	}
	return user, nil
}

// Login opens a session and loads the profile.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	if err := s.validator.Validate(validation.LoginForm{Email: email, Password: password}); err != nil {
		return &AuthResult{Status: StatusAnonymous}, err
	}

	session, err := s.accounts.CreateEmailSession(ctx, email, password)
	if err != nil {
		return &AuthResult{Status: StatusAnonymous}, fail(s.log, "create session", err)
	}

	var user model.User
	if err := s.store.GetDocument(ctx, s.collection, session.AccountID, &user); err != nil {
		return &AuthResult{Status: StatusAuthenticatedNoProfile, Session: session}, fail(s.log, "get profile", err)
	}

	return &AuthResult{Status: StatusAuthenticated, Session: session, User: &user}, nil
}

// Resolve returns the state of the session identified by token.
func (s *AuthService) Resolve(ctx context.Context, token string) *AuthResult {
	if token == "" {
		return &AuthResult{Status: StatusAnonymous}
	}

	account, err := s.accounts.Get(ctx, token)
	if err != nil {
		return &AuthResult{Status: StatusAnonymous}
	}
	session := &gateway.Session{AccountID: account.ID, Token: token}

	var user model.User
	if err := s.store.GetDocument(ctx, s.collection, account.ID, &user); err != nil {
		if !gateway.IsNotFound(err) {
			s.log.Warn().Err(err).Str("account_id", account.ID).Msg("failed to load profile")
		}
		return &AuthResult{Status: StatusAuthenticatedNoProfile, Session: session, Account: account}
	}

	return &AuthResult{Status: StatusAuthenticated, Session: session, User: &user, Account: account}
}

// GetCurrentUser returns the profile of the session, or nil.
func (s *AuthService) GetCurrentUser(ctx context.Context, token string) *model.User {
	return s.Resolve(ctx, token).User
}

// RepairProfile creates the profile of a signed-in account that has none.
func (s *AuthService) RepairProfile(ctx context.Context, token string, input ProfileInput) (*model.User, error) {
	if err := s.validator.Validate(input); err != nil {
		return nil, err
	}

	account, err := s.accounts.Get(ctx, token)
	if err != nil {
		return nil, fail(s.log, "get account", err)
	}

	var existing model.User
	err = s.store.GetDocument(ctx, s.collection, account.ID, &existing)
	if err == nil {
		return &existing, nil
	}
	if !gateway.IsNotFound(err) {
		return nil, fail(s.log, "get profile", err)
	}

	return s.createProfile(ctx, account, input.Semester, input.College)
}

// Logout ends the current session only.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if err := s.accounts.DeleteSession(ctx, token); err != nil {
		return fail(s.log, "delete session", err)
	}
	return nil
}

// UpdateProfile changes name, semester and college.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*model.User, error) {
	if err := s.validator.Validate(update); err != nil {
		return nil, err
	}

	data := make(map[string]interface{})
	if update.Name != nil {
		data["name"] = strings.TrimSpace(*update.Name)
	}
	if update.Semester != nil {
		data["semester"] = *update.Semester
	}
	if update.College != nil {
		data["college"] = strings.TrimSpace(*update.College)
	}

	var user model.User
	if len(data) == 0 {
		if err := s.store.GetDocument(ctx, s.collection, userID, &user); err != nil {
			return nil, fail(s.log, "get profile", err)
		}
		return &user, nil
	}
	data["updated_at"] = time.Now()

	if err := s.store.UpdateDocument(ctx, s.collection, userID, data, &user); err != nil {
		return nil, fail(s.log, "update profile", err)
	}
	return &user, nil
}

// ForgotPassword emails a recovery link pointing at /reset-password.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	if !validation.ValidateEmail(email) {
		return &Error{Status: http.StatusBadRequest, Message: "Please enter a valid email"}
	}
	if err := s.accounts.CreateRecovery(ctx, email, s.appURL+"/reset-password"); err != nil {
		return fail(s.log, "create recovery", err)
	}
	return nil
}

// ResetPassword completes a recovery with the secret from the emailed link.
func (s *AuthService) ResetPassword(ctx context.Context, userID, secret, password, confirm string) error {
	if err := s.accounts.UpdateRecovery(ctx, userID, secret, password, confirm); err != nil {
		return fail(s.log, "update recovery", err)
	}
	return nil
}

// SendVerification emails a verification link pointing at /verify.
func (s *AuthService) SendVerification(ctx context.Context, token string) error {
	if err := s.accounts.CreateVerification(ctx, token, s.appURL+"/verify"); err != nil {
		return fail(s.log, "create verification", err)
	}
	return nil
}

// VerifyEmail completes a verification and marks the profile verified.
func (s *AuthService) VerifyEmail(ctx context.Context, userID, secret string) error {
	if err := s.accounts.UpdateVerification(ctx, userID, secret); err != nil {
		return fail(s.log, "update verification", err)
	}

	err := s.store.UpdateDocument(ctx, s.collection, userID, map[string]interface{}{"verified": true, "updated_at": time.Now()}, nil)
	if err != nil && !gateway.IsNotFound(err) {
		return fail(s.log, "mark profile verified", err)
	}
	return nil
}
