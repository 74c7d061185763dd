package service

import (
	"errors"
	"testing"

	"github.com/taskflow/portal/internal/core/domain"
)

func advanceOK(t *testing.T, w *RegistrationWizard, in WizardInput) WizardView {
	t.Helper()
	view, payload, err := w.Advance(in)
	if err != nil {
		t.Fatalf("step %s: unexpected error: %v (%+v)", view.StepName, err, view.Errors)
	}
	if payload != nil {
		t.Fatalf("step %s: payload before the last step", view.StepName)
	}
	return view
}

func TestWizard_ClientFlowBuildsPayload(t *testing.T) {
	w := NewRegistrationWizard()

	advanceOK(t, w, WizardInput{Role: "client"})
	advanceOK(t, w, WizardInput{FirstName: "Ana", Email: "ana@example.com"})
	view := advanceOK(t, w, WizardInput{CompanyName: "Acme", CompanySize: "11-50", Skills: []string{"ignored"}})
	if view.Step != StepCredentials {
		t.Fatalf("expected credentials step, got %s", view.StepName)
	}

	view, payload, err := w.Advance(WizardInput{Password: "Secret123", ConfirmPassword: "Secret123"})
	if err != nil || payload == nil {
		t.Fatalf("expected payload, got %v", err)
	}
	if payload.Role != domain.RoleClient || payload.CompanyName != "Acme" || payload.Email != "ana@example.com" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if len(payload.Skills) != 0 {
		t.Fatalf("client payload must not carry developer fields")
	}
	if view.Data.Password != "" || view.Data.ConfirmPassword != "" {
		t.Fatalf("view must not echo passwords")
	}
}

func TestWizard_DeveloperDetailsStep(t *testing.T) {
	w := NewRegistrationWizard()
	advanceOK(t, w, WizardInput{Role: "DEVELOPER"})
	advanceOK(t, w, WizardInput{FirstName: "Dev", Email: "dev@example.com"})

	view, _, err := w.Advance(WizardInput{CompanyName: "Acme"})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if view.Errors["skills"] == "" || view.Errors["experience"] == "" {
		t.Fatalf("expected skills and experience errors, got %+v", view.Errors)
	}

	advanceOK(t, w, WizardInput{Skills: []string{"go", " "}, Experience: "senior"})
	_, payload, err := w.Advance(WizardInput{Password: "Secret123", ConfirmPassword: "Secret123"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.Role != domain.RoleDeveloper || len(payload.Skills) != 1 || payload.CompanyName != "" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestWizard_RoleMustBeClientOrDeveloper(t *testing.T) {
	w := NewRegistrationWizard()

	view, _, err := w.Advance(WizardInput{Role: "ADMIN"})
	if err == nil || view.Errors["role"] == "" || view.Step != StepRole {
		t.Fatalf("expected role error on role step, got %+v", view)
	}
}

func TestWizard_ErrorsClearedOnStepChange(t *testing.T) {
	w := NewRegistrationWizard()
	advanceOK(t, w, WizardInput{Role: "CLIENT"})

	view, _, _ := w.Advance(WizardInput{Email: "bad"})
	if view.Errors["firstName"] == "" || view.Errors["email"] == "" {
		t.Fatalf("expected personal errors, got %+v", view.Errors)
	}

	view = w.Back()
	if len(view.Errors) != 0 || view.Step != StepRole {
		t.Fatalf("expected clean role step, got %+v", view)
	}
}

func TestWizard_BackPreservesData(t *testing.T) {
	w := NewRegistrationWizard()
	advanceOK(t, w, WizardInput{Role: "CLIENT"})
	advanceOK(t, w, WizardInput{FirstName: "Ana", Email: "ana@example.com"})

	w.Back()
	view := w.Back()

	if view.Step != StepRole || view.Data.FirstName != "Ana" || view.Data.Role != "CLIENT" {
		t.Fatalf("expected data kept after going back, got %+v", view)
	}
}

func TestWizard_PasswordRules(t *testing.T) {
	cases := []struct {
		name    string
		pw, cfm string
		field   string
		message string
	}{
		{"too weak", "password", "password", "password", fieldMessages["password.complex_password"]},
		{"no digit", "Password", "Password", "password", fieldMessages["password.complex_password"]},
		{"mismatch", "Secret123", "Secret124", "confirmPassword", "Passwords do not match"},
		{"seven characters, nine bytes", "Pässwö1", "Pässwö1", "password", fieldMessages["password.complex_password"]},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := NewRegistrationWizard()
			advanceOK(t, w, WizardInput{Role: "CLIENT"})
			advanceOK(t, w, WizardInput{FirstName: "Ana", Email: "ana@example.com"})
			advanceOK(t, w, WizardInput{CompanyName: "Acme", CompanySize: "1-10"})

			view, payload, err := w.Advance(WizardInput{Password: tc.pw, ConfirmPassword: tc.cfm})
			if err == nil || payload != nil {
				t.Fatalf("expected rejection")
			}
			if view.Errors[tc.field] != tc.message {
				t.Fatalf("expected %q on %s, got %+v", tc.message, tc.field, view.Errors)
			}
		})
	}
}

func TestIsComplexPassword_CountsCharacters(t *testing.T) {
	if isComplexPassword("Pässwö1") {
		t.Fatalf("a 7-character password must be rejected regardless of its byte length")
	}
	if !isComplexPassword("Pässwörd1") {
		t.Fatalf("expected a 9-character mixed-case password with a digit to pass")
	}
}

func TestWizard_ResetStartsOver(t *testing.T) {
	w := NewRegistrationWizard()
	advanceOK(t, w, WizardInput{Role: "CLIENT"})

	view := w.Reset()
	if view.Step != StepRole || view.Data.Role != "" {
		t.Fatalf("expected fresh wizard, got %+v", view)
	}
}
