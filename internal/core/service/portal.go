package service

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/taskflow/portal/internal/core/domain"
	"github.com/taskflow/portal/internal/core/ports"
)

// Portal is the application service behind the sign-in, OAuth, registration
// and session endpoints. It owns no state of its own; per-visitor state lives
// in the VisitorRegistry.
type Portal struct {
	Visitors    *VisitorRegistry
	issuance    *IssuanceService
	lifecycle   *LifecycleController
	credentials ports.CredentialService
	log         zerolog.Logger
}

// NewPortal wires the portal services together.
func NewPortal(
	visitors *VisitorRegistry,
	issuance *IssuanceService,
	lifecycle *LifecycleController,
	credentials ports.CredentialService,
	log zerolog.Logger,
) *Portal {
	return &Portal{
		Visitors:    visitors,
		issuance:    issuance,
		lifecycle:   lifecycle,
		credentials: credentials,
		log:         log,
	}
}

// Lifecycle exposes the lifecycle controller for read-only views.
func (p *Portal) Lifecycle() *LifecycleController { return p.lifecycle }

// EnterLogin is called when the visitor opens the login surface.
func (p *Portal) EnterLogin(ctx context.Context, v *Visitor) LoginSurface {
	return p.lifecycle.EnterLogin(ctx, v.ID, v.Session)
}

// LoginWithPassword runs the password path end to end.
func (p *Portal) LoginWithPassword(ctx context.Context, v *Visitor, email, password string) (Decision, error) {
	release, err := v.Begin(ActionPasswordLogin)
	if err != nil {
		return Decision{}, err
	}
	defer release()

	out := p.issuance.LoginWithPassword(ctx, v.Session, email, password)
	return p.lifecycle.Resolve(ctx, v.ID, out), nil
}

// SelectOAuthRole records the role chosen on the OAuth surface.
func (p *Portal) SelectOAuthRole(v *Visitor, role domain.Role) (domain.InviteVerification, error) {
	if !role.IsValid() {
		return v.OAuthInvite.Snapshot(), domain.ErrInvalidRole
	}
	return v.OAuthInvite.SelectRole(role), nil
}

// VerifyInvite verifies an invite code on the OAuth surface.
func (p *Portal) VerifyInvite(ctx context.Context, v *Visitor, code string, role domain.Role) (domain.InviteVerification, error) {
	return verifyInvite(ctx, v.OAuthInvite, code, role)
}

// VerifyRegistrationInvite verifies an invite code for the registration
// wizard.
func (p *Portal) VerifyRegistrationInvite(ctx context.Context, v *Visitor, code string, role domain.Role) (domain.InviteVerification, error) {
	return verifyInvite(ctx, v.RegistrationInvite, code, role)
}

func verifyInvite(ctx context.Context, gate *InviteGate, code string, role domain.Role) (domain.InviteVerification, error) {
	if !role.IsValid() {
		return gate.Snapshot(), domain.ErrInvalidRole
	}
	return gate.Verify(ctx, code, role)
}

// LoginWithOAuth runs the OAuth path with an opaque provider credential. It
// refuses elevated roles without a verified invite before any network call.
func (p *Portal) LoginWithOAuth(ctx context.Context, v *Visitor, source ports.ProviderCredentialSource, role domain.Role) (Decision, error) {
	if role.IsValid() && !v.OAuthInvite.Allows(role) {
		return Decision{
			State:   domain.StateUnauthenticated,
			Outcome: OutcomeInvalid,
			Message: ErrMessageInviteReq,
			Fields:  map[string]string{"inviteCode": ErrMessageInviteReq},
		}, domain.ErrInviteRequired
	}

	release, err := v.Begin(ActionOAuthLogin)
	if err != nil {
		return Decision{}, err
	}
	defer release()

	out := p.issuance.LoginWithOAuth(ctx, v.Session, source, role, v.OAuthInvite)
	d := p.lifecycle.Resolve(ctx, v.ID, out)
	if out.Kind == OutcomeSuccess || out.Kind == OutcomeNeedsApproval {
		v.OAuthInvite.Close()
	}
	return d, nil
}

// CloseOAuth dismisses the OAuth role-selection surface. A committed session
// and the registration wizard are unaffected.
func (p *Portal) CloseOAuth(v *Visitor) {
	v.OAuthInvite.Close()
}

// StartRegistration opens a fresh wizard. Earlier answers and any invite
// verified for the previous wizard are discarded.
func (p *Portal) StartRegistration(v *Visitor) WizardView {
	v.RegistrationInvite.Close()
	return v.Wizard.Reset()
}

// AdvanceRegistration submits the current wizard step. When the final step
// validates the payload is sent and the lifecycle decision is returned.
func (p *Portal) AdvanceRegistration(ctx context.Context, v *Visitor, in WizardInput) (WizardView, *Decision, error) {
	if v.Wizard.View().Step == StepCredentials {
		release, err := v.Begin(ActionRegister)
		if err != nil {
			return v.Wizard.View(), nil, err
		}
		defer release()
	}

	view, payload, err := v.Wizard.Advance(in)
	if err != nil || payload == nil {
		return view, nil, err
	}

	out := p.issuance.Register(ctx, v.Session, *payload, v.RegistrationInvite)
	d := p.lifecycle.Resolve(ctx, v.ID, out)
	if out.Kind == OutcomeSuccess || out.Kind == OutcomeNeedsApproval {
		view = p.StartRegistration(v)
	}
	return view, &d, nil
}

// Logout signs the visitor out.
func (p *Portal) Logout(ctx context.Context, v *Visitor) {
	p.lifecycle.Logout(ctx, v.ID, v.Session)
}

// RefreshUser re-fetches the signed-in user. An authorization failure on the
// call signs the visitor out, unless the session it was made with has already
// been replaced.
func (p *Portal) RefreshUser(ctx context.Context, v *Visitor) (*domain.User, error) {
	snap := v.Session.Session()
	if !snap.Authenticated() {
		return nil, domain.ErrUnauthorized
	}

	user, err := p.credentials.CurrentUser(ctx, snap.Session.Token)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) || errors.Is(err, domain.ErrAccessDenied) {
			if p.lifecycle.Expire(ctx, v.ID, v.Session, snap.Session.Token) {
				p.log.Info().Str("visitor_id", v.ID).Msg("session rejected upstream, signed out")
			}
		}
		return nil, err
	}

	// A concurrent logout or re-login wins over this refresh.
	v.Session.RefreshUser(ctx, user, snap.Session.Token)
	return user.Clone(), nil
}

// OneShotCredential is a ProviderCredentialSource for a credential already
// obtained by the provider's own widget. It yields the credential once.
type OneShotCredential struct {
	mu       sync.Mutex
	value    string
	consumed bool
}

// NewOneShotCredential wraps value.
func NewOneShotCredential(value string) *OneShotCredential {
	return &OneShotCredential{value: value}
}

// Credential returns the wrapped value the first time it is called.
func (c *OneShotCredential) Credential(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.consumed {
		return "", domain.ErrCredentialConsumed
	}
	c.consumed = true
	if c.value == "" {
		return "", errors.New("provider returned an empty credential")
	}
	return c.value, nil
}
