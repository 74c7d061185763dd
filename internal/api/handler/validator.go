package handler

import (
	"github.com/go-playground/validator/v10"

	"github.com/taskflow/portal/internal/core/service"
)

// requestValidator lets handlers call c.Validate(req). It shares its tags and
// messages with the service-layer forms.
type requestValidator struct {
	v *validator.Validate
}

// NewValidator returns a validator for echo.Echo.Validator. Failures are
// *domain.ValidationError keyed by JSON field name.
func NewValidator() *requestValidator {
	return &requestValidator{v: service.NewFormValidator()}
}

func (rv *requestValidator) Validate(i any) error {
	if verr := service.ValidateForm(rv.v, i); verr != nil {
		return verr
	}
	return nil
}
