package service

import (
	"errors"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/taskflow/portal/internal/core/domain"
)

// User-facing messages.
const (
	ErrMessageTransport   = "Cannot reach server. Please check your connection and try again."
	ErrMessageInviteEmpty = "Please enter an invite code"
	ErrMessageInviteReq   = "Please verify your invite code first"
	ErrMessageBadResponse = "Unexpected response from server"
)

// fieldMessages overrides the generic message for a (field, tag) pair.
var fieldMessages = map[string]string{
	"email.required":            "Email is required",
	"email.email":               "Please enter a valid email address",
	"password.required":         "Password is required",
	"password.min":              "Password must be at least 6 characters",
	"password.complex_password": "Password must be at least 8 characters and include uppercase, lowercase and a number",
	"confirmPassword.required":  "Please confirm your password",
	"confirmPassword.eqfield":   "Passwords do not match",
	"role.required":             "Please select a role",
	"role.oneof":                "Please select a valid role",
	"firstName.required":        "First name is required",
	"companyName.required":      "Company name is required",
	"companySize.required":      "Company size is required",
	"skills.required":           "Please list at least one skill",
	"skills.min":                "Please list at least one skill",
	"experience.required":       "Experience level is required",
	"portfolio.url":             "Portfolio must be a valid URL",
	"phone.e164":                "Phone must be in international format, e.g. +15551234567",
}

// NewFormValidator returns a validator that reports json field names and
// knows the complex_password tag.
func NewFormValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("complex_password", func(fl validator.FieldLevel) bool {
		return isComplexPassword(fl.Field().String())
	})
	return v
}

// isComplexPassword requires at least 8 characters with mixed case and a digit.
func isComplexPassword(pw string) bool {
	if utf8.RuneCountInString(pw) < 8 {
		return false
	}
	var upper, lower, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

// validateForm runs v over form and converts failures into a field-keyed
// domain.ValidationError. It returns nil when the form is valid.
func ValidateForm(v *validator.Validate, form any) *domain.ValidationError {
	err := v.Struct(form)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return domain.NewValidationError("form", err.Error())
	}
	out := &domain.ValidationError{Fields: make(map[string]string, len(ve))}
	for _, fe := range ve {
		field := fe.Field()
		if _, seen := out.Fields[field]; seen {
			continue
		}
		out.Fields[field] = fieldMessage(fe)
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	if msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]; ok {
		return msg
	}
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email"
	case "min":
		return fe.Field() + " must be at least " + fe.Param()
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	default:
		return fe.Field() + " is invalid"
	}
}
