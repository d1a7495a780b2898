package validation

import (
	"errors"
	"testing"
)

func validRegister() RegisterForm {
	return RegisterForm{
		Name:            "Priya Sharma",
		Email:           "priya@example.com",
		Password:        "Secret123",
		ConfirmPassword: "Secret123",
		Semester:        3,
	}
}

func TestValidateRegisterForm(t *testing.T) {
	v := NewValidator()

	if err := v.Validate(validRegister()); err != nil {
		t.Fatalf("valid form rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(f *RegisterForm)
		field  string
		want   string
	}{
		{"blank name", func(f *RegisterForm) { f.Name = "   " }, "name", "Name is required"},
		{"short name", func(f *RegisterForm) { f.Name = " A " }, "name", "Name must be at least 2 characters"},
		{"missing email", func(f *RegisterForm) { f.Email = "" }, "email", "Email is required"},
		{"bad email", func(f *RegisterForm) { f.Email = "priya.example.com" }, "email", "Please enter a valid email"},
		{"missing password", func(f *RegisterForm) { f.Password = ""; f.ConfirmPassword = "" }, "password", "Password is required"},
		{"short password", func(f *RegisterForm) { f.Password = "Ab1"; f.ConfirmPassword = "Ab1" }, "password", "Password must be at least 8 characters"},
		{"simple password", func(f *RegisterForm) { f.Password = "alllowercase1"; f.ConfirmPassword = "alllowercase1" }, "password", "Password must contain uppercase, lowercase, and number"},
		{"missing confirm", func(f *RegisterForm) { f.ConfirmPassword = "" }, "confirmPassword", "Please confirm your password"},
		{"mismatch", func(f *RegisterForm) { f.ConfirmPassword = "Secret124" }, "confirmPassword", "Passwords do not match"},
		{"semester zero", func(f *RegisterForm) { f.Semester = 0 }, "semester", "Please select a valid semester"},
		{"semester seven", func(f *RegisterForm) { f.Semester = 7 }, "semester", "Please select a valid semester"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := validRegister()
			tt.mutate(&form)

			err := v.Validate(form)
			var formErr *FormError
			if !errors.As(err, &formErr) {
				t.Fatalf("expected *FormError, got %v", err)
			}
			if got := formErr.Fields[tt.field]; got != tt.want {
				t.Errorf("%s = %q, want %q", tt.field, got, tt.want)
			}
		})
	}
}

func TestValidateLoginForm(t *testing.T) {
	v := NewValidator()

	if err := v.Validate(LoginForm{Email: "a@b.co", Password: "123456"}); err != nil {
		t.Fatalf("valid login rejected: %v", err)
	}

	err := v.Validate(LoginForm{Email: "", Password: "12345"})
	var formErr *FormError
	if !errors.As(err, &formErr) {
		t.Fatalf("expected *FormError, got %v", err)
	}
	if formErr.Fields["email"] != "Email is required" {
		t.Errorf("email = %q", formErr.Fields["email"])
	}
	if formErr.Fields["password"] != "Password must be at least 6 characters" {
		t.Errorf("password = %q", formErr.Fields["password"])
	}
}

func TestPasswordStrength(t *testing.T) {
	tests := map[string]string{
		"":          StrengthNone,
		"abc":       StrengthWeak,
		"abcdef":    StrengthMedium,
		"abcdefgh":  StrengthMedium,
		"Abcdefg1":  StrengthStrong,
		"ABCDEFG12": StrengthMedium,
	}
	for password, want := range tests {
		if got := PasswordStrength(password); got != want {
			t.Errorf("PasswordStrength(%q) = %q, want %q", password, got, want)
		}
	}
}
