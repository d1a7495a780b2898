// Package state holds the authentication state of one client session and
// reports the outcome of every transition through a Notifier.
package state

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/sahilchouksey/bca-library/model"
	"github.com/sahilchouksey/bca-library/services"
	"github.com/sahilchouksey/bca-library/utils/validation"
)

// Messages reported to the Notifier.
const (
	MsgLoginSuccess    = "Welcome back!"
	MsgLoginFailed     = "Failed to login"
	MsgRegisterSuccess = "Account created successfully!"
	MsgRegisterFailed  = "Failed to create account"
	MsgLogoutSuccess   = "Logged out successfully"
	MsgLogoutFailed    = "Failed to logout"
	MsgProfileUpdated  = "Profile updated successfully"
	MsgProfileFailed   = "Failed to update profile"
	MsgNoUser          = "No user logged in"
)

// ErrNoUser is returned by profile operations without a signed-in user.
var ErrNoUser = errors.New(MsgNoUser)

// Auth is the subset of the auth service the state depends on.
type Auth interface {
	Resolve(ctx context.Context, token string) *services.AuthResult
	Login(ctx context.Context, email, password string) (*services.AuthResult, error)
	Register(ctx context.Context, form validation.RegisterForm) (*services.AuthResult, error)
	Logout(ctx context.Context, token string) error
	UpdateProfile(ctx context.Context, userID string, update services.ProfileUpdate) (*model.User, error)
	RepairProfile(ctx context.Context, token string, input services.ProfileInput) (*model.User, error)
}

// Snapshot is a copy of the state safe to serialize.
type Snapshot struct {
	Status  string      `json:"status"`
	User    *model.User `json:"user"`
	Loading bool        `json:"loading"`
}

// AppState is the session state of one client.
type AppState struct {
	auth     Auth
	notifier Notifier

	mu      sync.RWMutex
	status  string
	token   string
	user    *model.User
	loading bool
}

func New(auth Auth, notifier Notifier) *AppState {
	if notifier == nil {
		notifier = Discard{}
	}
	return &AppState{
		auth:     auth,
		notifier: notifier,
		status:   services.StatusAnonymous,
	}
}

// Init restores the state of an existing session token. It never fails; an
// invalid token leaves the state anonymous.
func (s *AppState) Init(ctx context.Context, token string) {
	s.setLoading(true)
	defer s.setLoading(false)

	s.apply(s.auth.Resolve(ctx, token), token)
}

func (s *AppState) Login(ctx context.Context, email, password string) error {
	s.setLoading(true)
	defer s.setLoading(false)

	result, err := s.auth.Login(ctx, email, password)
	s.applySession(result)
	if err != nil {
		s.notifier.Error(messageOf(err, MsgLoginFailed))
		return err
	}

	s.notifier.Success(MsgLoginSuccess)
	return nil
}

func (s *AppState) Register(ctx context.Context, form validation.RegisterForm) error {
	s.setLoading(true)
	defer s.setLoading(false)

	result, err := s.auth.Register(ctx, form)
	s.applySession(result)
	if err != nil {
		s.notifier.Error(messageOf(err, MsgRegisterFailed))
		return err
	}

	s.notifier.Success(MsgRegisterSuccess)
	return nil
}

// Logout ends the session and clears the state.
func (s *AppState) Logout(ctx context.Context) error {
	s.setLoading(true)
	defer s.setLoading(false)

	if err := s.auth.Logout(ctx, s.Token()); err != nil {
		s.notifier.Error(messageOf(err, MsgLogoutFailed))
		return err
	}

	s.Reset()
	s.notifier.Success(MsgLogoutSuccess)
	return nil
}

func (s *AppState) UpdateProfile(ctx context.Context, update services.ProfileUpdate) error {
	user := s.User()
	if user == nil {
		s.notifier.Error(MsgNoUser)
		return ErrNoUser
	}

	s.setLoading(true)
	defer s.setLoading(false)

	updated, err := s.auth.UpdateProfile(ctx, user.ID, update)
	if err != nil {
		s.notifier.Error(messageOf(err, MsgProfileFailed))
		return err
	}

	s.mu.Lock()
	s.user = updated
	s.mu.Unlock()

	s.notifier.Success(MsgProfileUpdated)
	return nil
}

// RepairProfile creates the missing profile of an authenticated session.
func (s *AppState) RepairProfile(ctx context.Context, input services.ProfileInput) error {
	if s.Status() == services.StatusAnonymous {
		s.notifier.Error(MsgNoUser)
		return ErrNoUser
	}

	s.setLoading(true)
	defer s.setLoading(false)

	user, err := s.auth.RepairProfile(ctx, s.Token(), input)
	if err != nil {
		s.notifier.Error(messageOf(err, MsgProfileFailed))
		return err
	}

	s.mu.Lock()
	s.user = user
	s.status = services.StatusAuthenticated
	s.mu.Unlock()

	s.notifier.Success(MsgProfileUpdated)
	return nil
}

// Reset drops the session from the state.
func (s *AppState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = services.StatusAnonymous
	s.token = ""
	s.user = nil
}

func (s *AppState) Status() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *AppState) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *AppState) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *AppState) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// IsAuthenticated reports whether a session exists, with or without profile.
func (s *AppState) IsAuthenticated() bool {
	return s.Status() != services.StatusAnonymous
}

func (s *AppState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Status: s.status, User: s.user, Loading: s.loading}
}

func (s *AppState) setLoading(loading bool) {
	s.mu.Lock()
	s.loading = loading
	s.mu.Unlock()
}

// apply stores an auth result. token overrides the result's session token.
func (s *AppState) apply(result *services.AuthResult, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if result == nil || result.Status == services.StatusAnonymous {
		s.status = services.StatusAnonymous
		s.token = ""
		s.user = nil
		return
	}

	s.status = result.Status
	s.user = result.User
	switch {
	case token != "":
		s.token = token
	case result.Session != nil:
		s.token = result.Session.Token
	}
}

// applySession stores result when it carries a session, so a failed sign-in
// keeps the previous state.
func (s *AppState) applySession(result *services.AuthResult) {
	if result == nil || result.Session == nil {
		return
	}
	s.apply(result, "")
}

// messageOf returns the user-facing text of err, or fallback.
func messageOf(err error, fallback string) string {
	var formErr *validation.FormError
	if errors.As(err, &formErr) && len(formErr.Fields) > 0 {
		fields := make([]string, 0, len(formErr.Fields))
		for f := range formErr.Fields {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		return formErr.Fields[fields[0]]
	}

	var svcErr *services.Error
	if errors.As(err, &svcErr) && svcErr.Message != "" {
		return svcErr.Message
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return fallback
}
