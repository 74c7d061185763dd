package service

import (
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/taskflow/portal/internal/core/domain"
	"github.com/taskflow/portal/internal/core/ports"
)

// WizardStep numbers the registration steps.
type WizardStep int

const (
	StepRole WizardStep = iota + 1
	StepPersonal
	StepRoleDetails
	StepCredentials
)

func (s WizardStep) String() string {
	switch s {
	case StepRole:
		return "role"
	case StepPersonal:
		return "personal"
	case StepRoleDetails:
		return "details"
	case StepCredentials:
		return "credentials"
	default:
		return "unknown"
	}
}

// WizardInput carries the fields of whichever step is being submitted.
// Fields belonging to other steps are ignored.
type WizardInput struct {
	Role            string   `json:"role"`
	FirstName       string   `json:"firstName"`
	LastName        string   `json:"lastName"`
	Email           string   `json:"email"`
	Phone           string   `json:"phone"`
	CompanyName     string   `json:"companyName"`
	CompanySize     string   `json:"companySize"`
	Industry        string   `json:"industry"`
	Skills          []string `json:"skills"`
	Experience      string   `json:"experience"`
	Portfolio       string   `json:"portfolio"`
	Password        string   `json:"password"`
	ConfirmPassword string   `json:"confirmPassword"`
}

type roleStep struct {
	Role string `json:"role" validate:"required,oneof=CLIENT DEVELOPER"`
}

type personalStep struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"     validate:"required,email"`
	Phone     string `json:"phone"     validate:"omitempty,e164"`
}

type companyStep struct {
	CompanyName string `json:"companyName" validate:"required"`
	CompanySize string `json:"companySize" validate:"required"`
	Industry    string `json:"industry"`
}

type developerStep struct {
	Skills     []string `json:"skills"     validate:"required,min=1,dive,required"`
	Experience string   `json:"experience" validate:"required"`
	Portfolio  string   `json:"portfolio"  validate:"omitempty,url"`
}

type credentialsStep struct {
	Password        string `json:"password"        validate:"required,complex_password"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// WizardView is a password-free snapshot of the wizard for rendering.
type WizardView struct {
	Step     WizardStep        `json:"step"`
	StepName string            `json:"stepName"`
	Total    int               `json:"total"`
	Data     WizardInput       `json:"data"`
	Errors   map[string]string `json:"errors,omitempty"`
}

// RegistrationWizard assembles a role-dependent registration payload over
// four local steps. Nothing is sent until the last step validates.
type RegistrationWizard struct {
	validate *validator.Validate

	mu     sync.Mutex
	step   WizardStep
	data   WizardInput
	errors map[string]string
}

// NewRegistrationWizard returns a wizard positioned on the role step.
func NewRegistrationWizard() *RegistrationWizard {
	return &RegistrationWizard{validate: NewFormValidator(), step: StepRole}
}

// View returns the current step, data and errors.
func (w *RegistrationWizard) View() WizardView {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.view()
}

// Advance merges in's fields for the current step and validates them. On the
// last step a valid submission yields the payload; the wizard stays on that
// step until Reset.
func (w *RegistrationWizard) Advance(in WizardInput) (WizardView, *ports.RegistrationPayload, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	form := w.merge(in)
	if verr := ValidateForm(w.validate, form); verr != nil {
		w.errors = verr.Fields
		return w.view(), nil, verr
	}
	w.errors = nil

	if w.step == StepCredentials {
		payload := w.payload()
		return w.view(), &payload, nil
	}
	w.step++
	return w.view(), nil, nil
}

// Back moves one step back, keeping everything entered so far.
func (w *RegistrationWizard) Back() WizardView {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step > StepRole {
		w.step--
	}
	w.errors = nil
	return w.view()
}

// Reset discards all answers.
func (w *RegistrationWizard) Reset() WizardView {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.step = StepRole
	w.data = WizardInput{}
	w.errors = nil
	return w.view()
}

// merge copies the current step's fields from in and returns the struct to
// validate for that step.
func (w *RegistrationWizard) merge(in WizardInput) any {
	switch w.step {
	case StepRole:
		w.data.Role = strings.ToUpper(strings.TrimSpace(in.Role))
		return roleStep{Role: w.data.Role}
	case StepPersonal:
		w.data.FirstName = strings.TrimSpace(in.FirstName)
		w.data.LastName = strings.TrimSpace(in.LastName)
		w.data.Email = strings.TrimSpace(in.Email)
		w.data.Phone = strings.TrimSpace(in.Phone)
		return personalStep{FirstName: w.data.FirstName, LastName: w.data.LastName, Email: w.data.Email, Phone: w.data.Phone}
	case StepRoleDetails:
		if domain.Role(w.data.Role) == domain.RoleDeveloper {
			w.data.Skills = trimAll(in.Skills)
			w.data.Experience = strings.TrimSpace(in.Experience)
			w.data.Portfolio = strings.TrimSpace(in.Portfolio)
			return developerStep{Skills: w.data.Skills, Experience: w.data.Experience, Portfolio: w.data.Portfolio}
		}
		w.data.CompanyName = strings.TrimSpace(in.CompanyName)
		w.data.CompanySize = strings.TrimSpace(in.CompanySize)
		w.data.Industry = strings.TrimSpace(in.Industry)
		return companyStep{CompanyName: w.data.CompanyName, CompanySize: w.data.CompanySize, Industry: w.data.Industry}
	default:
		w.data.Password = in.Password
		w.data.ConfirmPassword = in.ConfirmPassword
		return credentialsStep{Password: w.data.Password, ConfirmPassword: w.data.ConfirmPassword}
	}
}

func (w *RegistrationWizard) payload() ports.RegistrationPayload {
	p := ports.RegistrationPayload{
		Role:      domain.Role(w.data.Role),
		FirstName: w.data.FirstName,
		LastName:  w.data.LastName,
		Email:     w.data.Email,
		Phone:     w.data.Phone,
		Password:  w.data.Password,
	}
	if p.Role == domain.RoleDeveloper {
		p.Skills = append([]string(nil), w.data.Skills...)
		p.Experience = w.data.Experience
		p.Portfolio = w.data.Portfolio
	} else {
		p.CompanyName = w.data.CompanyName
		p.CompanySize = w.data.CompanySize
		p.Industry = w.data.Industry
	}
	return p
}

func (w *RegistrationWizard) view() WizardView {
	data := w.data
	data.Password, data.ConfirmPassword = "", ""
	data.Skills = append([]string(nil), w.data.Skills...)

	var errs map[string]string
	if len(w.errors) > 0 {
		errs = make(map[string]string, len(w.errors))
		for k, v := range w.errors {
			errs[k] = v
		}
	}
	return WizardView{
		Step:     w.step,
		StepName: w.step.String(),
		Total:    int(StepCredentials),
		Data:     data,
		Errors:   errs,
	}
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
