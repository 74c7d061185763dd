package ports

import (
	"context"

	"github.com/taskflow/portal/internal/core/domain"
)

// PasswordLoginRequest is the body of the password sign-in call.
type PasswordLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// OAuthExchangeRequest forwards an opaque provider credential untouched.
type OAuthExchangeRequest struct {
	ProviderCredential string      `json:"providerCredential"`
	Role               domain.Role `json:"role"`
	InviteCode         string      `json:"inviteCode,omitempty"`
}

// RegistrationPayload is the assembled output of the registration wizard.
type RegistrationPayload struct {
	Role        domain.Role `json:"role"`
	FirstName   string      `json:"firstName"`
	LastName    string      `json:"lastName,omitempty"`
	Email       string      `json:"email"`
	Phone       string      `json:"phone,omitempty"`
	CompanyName string      `json:"companyName,omitempty"`
	CompanySize string      `json:"companySize,omitempty"`
	Industry    string      `json:"industry,omitempty"`
	Skills      []string    `json:"skills,omitempty"`
	Experience  string      `json:"experience,omitempty"`
	Portfolio   string      `json:"portfolio,omitempty"`
	Password    string      `json:"password"`
	InviteCode  string      `json:"inviteCode,omitempty"`
}

// CredentialService is the remote credential-issuing API.
//
// Failures are reported as:
//   - domain.ErrTransport (wrapped) when the service cannot be reached,
//   - *domain.ApprovalRequiredError for "needs approval" responses,
//   - domain.ErrAccessDenied (wrapped) for a refused account,
//   - *domain.UpstreamError for any other rejection.
type CredentialService interface {
	PasswordLogin(ctx context.Context, req PasswordLoginRequest) (*domain.AuthSession, error)
	OAuthExchange(ctx context.Context, req OAuthExchangeRequest) (*domain.AuthSession, error)
	VerifyInvite(ctx context.Context, code string) error
	Register(ctx context.Context, payload RegistrationPayload) (*domain.AuthSession, error)
	// CurrentUser re-fetches the user owning token.
	CurrentUser(ctx context.Context, token string) (*domain.User, error)
}

// ProviderCredentialSource produces an opaque OAuth provider credential,
// asynchronously and at most once.
type ProviderCredentialSource interface {
	Credential(ctx context.Context) (string, error)
}
