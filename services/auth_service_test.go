package services_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/sahilchouksey/bca-library/model"
	"github.com/sahilchouksey/bca-library/services"
	"github.com/sahilchouksey/bca-library/utils/validation"
)

func TestAuthService_RegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	result := env.register(t, "asha@example.com")
	if result.Status != services.StatusAuthenticated {
		t.Fatalf("status = %s", result.Status)
	}
	user := result.User
	if user.ID != result.Session.AccountID {
		t.Errorf("profile id %s should equal account id %s", user.ID, result.Session.AccountID)
	}
	if user.Role != model.RoleStudent || user.Verified || user.Semester != 3 || user.College != "City College" {
		t.Errorf("unexpected profile: %+v", user)
	}

	login, err := env.auth.Login(ctx, "asha@example.com", "Passw0rd!")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if login.Status != services.StatusAuthenticated || login.User.ID != user.ID {
		t.Fatalf("unexpected login result: %+v", login)
	}

	current := env.auth.GetCurrentUser(ctx, login.Session.Token)
	if current == nil || current.Email != "asha@example.com" {
		t.Fatalf("GetCurrentUser = %+v", current)
	}

	if err := env.auth.Logout(ctx, login.Session.Token); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if env.auth.GetCurrentUser(ctx, login.Session.Token) != nil {
		t.Error("logged out session should not resolve")
	}
	// only the current session ends
	if env.auth.GetCurrentUser(ctx, result.Session.Token) == nil {
		t.Error("other sessions should stay active")
	}
}

func TestAuthService_RegisterErrors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.register(t, "taken@example.com")

	_, err := env.auth.Register(ctx, registerForm("taken@example.com"))
	assertServiceError(t, err, http.StatusConflict, "Resource already exists.")

	form := registerForm("new@example.com")
	form.ConfirmPassword = "different"
	result, err := env.auth.Register(ctx, form)
	assertStatus(t, err, http.StatusUnprocessableEntity)
	if result.Status != services.StatusAnonymous {
		t.Errorf("status = %s", result.Status)
	}

	formErr, ok := err.(*validation.FormError)
	if !ok {
		t.Fatalf("expected *validation.FormError, got %T", err)
	}
	if formErr.Fields["confirmPassword"] != "Passwords do not match" {
		t.Errorf("fields = %v", formErr.Fields)
	}
}

func TestAuthService_LoginErrors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.register(t, "asha@example.com")

	result, err := env.auth.Login(ctx, "asha@example.com", "wrong-password")
	assertServiceError(t, err, http.StatusUnauthorized, "Authentication failed. Please log in again.")
	if result.Status != services.StatusAnonymous {
		t.Errorf("status = %s", result.Status)
	}

	_, err = env.auth.Login(ctx, "not-an-email", "whatever")
	assertStatus(t, err, http.StatusUnprocessableEntity)
}

func TestAuthService_ProfileFailureAndRepair(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	if err := env.backend.DB.Migrator().DropTable("users"); err != nil {
		t.Fatalf("DropTable failed: %v", err)
	}

	result, err := env.auth.Register(ctx, registerForm("ravi@example.com"))
	if err == nil {
		t.Fatal("expected profile creation to fail")
	}
	if result.Status != services.StatusAuthenticatedNoProfile || result.Session == nil {
		t.Fatalf("unexpected result: %+v", result)
	}
	assertStatus(t, err, http.StatusInternalServerError)

	if err := env.backend.DB.Table("users").AutoMigrate(&model.User{}); err != nil {
		t.Fatalf("AutoMigrate failed: %v", err)
	}

	resolved := env.auth.Resolve(ctx, result.Session.Token)
	if resolved.Status != services.StatusAuthenticatedNoProfile {
		t.Fatalf("Resolve status = %s", resolved.Status)
	}

	login, err := env.auth.Login(ctx, "ravi@example.com", "Passw0rd!")
	assertStatus(t, err, http.StatusNotFound)
	if login.Status != services.StatusAuthenticatedNoProfile {
		t.Errorf("login status = %s", login.Status)
	}

	user, err := env.auth.RepairProfile(ctx, result.Session.Token, services.ProfileInput{Semester: 2, College: "Govt College"})
	if err != nil {
		t.Fatalf("RepairProfile failed: %v", err)
	}
	if user.Semester != 2 || user.Name != "Asha Verma" {
		t.Errorf("unexpected repaired profile: %+v", user)
	}

	if got := env.auth.Resolve(ctx, result.Session.Token); got.Status != services.StatusAuthenticated {
		t.Errorf("status after repair = %s", got.Status)
	}

	// repairing an existing profile returns it unchanged
	again, err := env.auth.RepairProfile(ctx, result.Session.Token, services.ProfileInput{Semester: 5})
	if err != nil {
		t.Fatalf("RepairProfile failed: %v", err)
	}
	if again.Semester != 2 {
		t.Errorf("semester = %d, want 2", again.Semester)
	}
}

func TestAuthService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	result := env.register(t, "asha@example.com")

	name := "  Asha V  "
	semester := 4
	user, err := env.auth.UpdateProfile(ctx, result.User.ID, services.ProfileUpdate{Name: &name, Semester: &semester})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if user.Name != "Asha V" || user.Semester != 4 || user.College != "City College" {
		t.Errorf("unexpected profile: %+v", user)
	}

	bad := 7
	_, err = env.auth.UpdateProfile(ctx, result.User.ID, services.ProfileUpdate{Semester: &bad})
	assertStatus(t, err, http.StatusUnprocessableEntity)

	_, err = env.auth.UpdateProfile(ctx, "missing", services.ProfileUpdate{Name: &name})
	assertStatus(t, err, http.StatusNotFound)
}

func TestAuthService_PasswordRecovery(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	result := env.register(t, "asha@example.com")

	err := env.auth.ForgotPassword(ctx, "nope")
	assertServiceError(t, err, http.StatusBadRequest, "Please enter a valid email")

	if err := env.auth.ForgotPassword(ctx, "asha@example.com"); err != nil {
		t.Fatalf("ForgotPassword failed: %v", err)
	}
	mail := env.backend.Mailer.Last(t)
	if mail.Kind != "recovery" || mail.To != "asha@example.com" {
		t.Fatalf("unexpected mail: %+v", mail)
	}
	if want := "http://app.test/reset-password?"; len(mail.Link) < len(want) || mail.Link[:len(want)] != want {
		t.Errorf("link = %s", mail.Link)
	}

	userID, secret := env.backend.Mailer.LinkParams(t)
	err = env.auth.ResetPassword(ctx, userID, secret, "NewPassw0rd", "Mismatch1")
	assertStatus(t, err, http.StatusBadRequest)

	if err := env.auth.ResetPassword(ctx, userID, secret, "NewPassw0rd", "NewPassw0rd"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}
	if env.auth.GetCurrentUser(ctx, result.Session.Token) != nil {
		t.Error("sessions should be revoked after a reset")
	}

	if _, err := env.auth.Login(ctx, "asha@example.com", "NewPassw0rd"); err != nil {
		t.Fatalf("Login with new password failed: %v", err)
	}

	err = env.auth.ResetPassword(ctx, userID, secret, "Another1pw", "Another1pw")
	assertStatus(t, err, http.StatusUnauthorized)
}

func TestAuthService_EmailVerification(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	result := env.register(t, "asha@example.com")

	if err := env.auth.SendVerification(ctx, result.Session.Token); err != nil {
		t.Fatalf("SendVerification failed: %v", err)
	}
	mail := env.backend.Mailer.Last(t)
	if mail.Kind != "verification" {
		t.Fatalf("unexpected mail: %+v", mail)
	}

	userID, secret := env.backend.Mailer.LinkParams(t)
	if err := env.auth.VerifyEmail(ctx, userID, secret); err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}

	user := env.auth.GetCurrentUser(ctx, result.Session.Token)
	if user == nil || !user.Verified {
		t.Fatalf("profile should be verified: %+v", user)
	}

	err := env.auth.SendVerification(ctx, "bogus-token")
	assertStatus(t, err, http.StatusUnauthorized)
}
