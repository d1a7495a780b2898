package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var (
	// EmailRegex is the loose address check used by the auth forms.
	EmailRegex = regexp.MustCompile(`\S+@\S+\.\S+`)

	// PasswordMinLength is the minimum password length on registration
	PasswordMinLength = 8

	// LoginPasswordMinLength is the minimum password length accepted by the login form
	LoginPasswordMinLength = 6
)

// RegisterForm is the sign-up form.
type RegisterForm struct {
	Name            string `json:"name" validate:"nonblank,trimmin=2"`
	Email           string `json:"email" validate:"required,looseemail"`
	Password        string `json:"password" validate:"required,min=8,complexpw"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	Semester        int    `json:"semester" validate:"min=1,max=6"`
	College         string `json:"college,omitempty" validate:"max=255"`
}

// LoginForm is the sign-in form.
type LoginForm struct {
	Email    string `json:"email" validate:"required,looseemail"`
	Password string `json:"password" validate:"required,min=6"`
}

// messages holds the user facing text per field and failed rule.
var messages = map[string]string{
	"name.nonblank":            "Name is required",
	"name.trimmin":             "Name must be at least 2 characters",
	"email.required":           "Email is required",
	"email.looseemail":         "Please enter a valid email",
	"password.required":        "Password is required",
	"password.min":             "Password must be at least %s characters",
	"password.complexpw":       "Password must contain uppercase, lowercase, and number",
	"confirmPassword.required": "Please confirm your password",
	"confirmPassword.eqfield":  "Passwords do not match",
	"semester.min":             "Please select a valid semester",
	"semester.max":             "Please select a valid semester",
}

// FormError carries one message per invalid field.
type FormError struct {
	Fields map[string]string `json:"fields"`
}

func (e *FormError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validator wraps the go-playground validator
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a validator with the form rules registered
func NewValidator() *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	// Registration only fails for empty tags, which never happens here.
	_ = v.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("trimmin", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return utf8.RuneCountInString(strings.TrimSpace(fl.Field().String())) >= n
	})
	_ = v.RegisterValidation("looseemail", func(fl validator.FieldLevel) bool {
		return EmailRegex.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("complexpw", func(fl validator.FieldLevel) bool {
		return isComplex(fl.Field().String())
	})

	return &Validator{validate: v}
}

// ValidateStruct validates a struct using struct tags
func (v *Validator) ValidateStruct(s interface{}) error {
	return v.validate.Struct(s)
}

// Validate checks a form and returns a *FormError listing every invalid field.
func (v *Validator) Validate(form interface{}) error {
	err := v.validate.Struct(form)
	if err == nil {
		return nil
	}
	if _, ok := err.(validator.ValidationErrors); !ok {
		return err
	}
	return &FormError{Fields: FormatValidationErrors(err)}
}

// FormatValidationErrors converts validation errors to a user-friendly format
func FormatValidationErrors(err error) map[string]string {
	errors := make(map[string]string)

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors
	}

	for _, e := range validationErrs {
		field := e.Field()
		if msg, ok := messages[field+"."+e.Tag()]; ok {
			if strings.Contains(msg, "%s") {
				msg = fmt.Sprintf(msg, e.Param())
			}
			errors[field] = msg
			continue
		}

		switch e.Tag() {
		case "required", "nonblank":
			errors[field] = fmt.Sprintf("%s is required", field)
		case "email", "looseemail":
			errors[field] = "Invalid email format"
		case "min":
			if e.Kind() == reflect.String {
				errors[field] = fmt.Sprintf("%s must be at least %s characters", field, e.Param())
			} else {
				errors[field] = fmt.Sprintf("%s must be at least %s", field, e.Param())
			}
		case "max":
			if e.Kind() == reflect.String {
				errors[field] = fmt.Sprintf("%s must be at most %s characters", field, e.Param())
			} else {
				errors[field] = fmt.Sprintf("%s must be at most %s", field, e.Param())
			}
		case "oneof":
			errors[field] = fmt.Sprintf("%s must be one of: %s", field, e.Param())
		default:
			errors[field] = fmt.Sprintf("%s is invalid", field)
		}
	}

	return errors
}

// ValidateEmail checks if an email is valid
func ValidateEmail(email string) bool {
	return EmailRegex.MatchString(email)
}

func isComplex(password string) bool {
	var hasUpper, hasLower, hasNumber bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasNumber = true
		}
	}
	return hasUpper && hasLower && hasNumber
}

// Password strength levels
const (
	StrengthNone   = ""
	StrengthWeak   = "weak"
	StrengthMedium = "medium"
	StrengthStrong = "strong"
)

// PasswordStrength grades a password for the sign-up meter.
func PasswordStrength(password string) string {
	switch {
	case password == "":
		return StrengthNone
	case len(password) < LoginPasswordMinLength:
		return StrengthWeak
	case len(password) < PasswordMinLength:
		return StrengthMedium
	case !isComplex(password):
		return StrengthMedium
	default:
		return StrengthStrong
	}
}
