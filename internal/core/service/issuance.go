package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/taskflow/portal/internal/api/metrics"
	"github.com/taskflow/portal/internal/core/domain"
	"github.com/taskflow/portal/internal/core/ports"
)

// OutcomeKind discriminates the result of a credential issuance attempt.
type OutcomeKind string

const (
	OutcomeSuccess       OutcomeKind = "success"
	OutcomeNeedsApproval OutcomeKind = "needs_approval"
	OutcomeAccessDenied  OutcomeKind = "access_denied"
	OutcomeTransport     OutcomeKind = "transport"
	OutcomeRejected      OutcomeKind = "rejected"
	OutcomeInvalid       OutcomeKind = "invalid"
)

// Outcome is the normalised result of every issuance path.
type Outcome struct {
	Kind    OutcomeKind
	Method  domain.IssuanceMethod
	Email   string
	Role    domain.Role
	Session *domain.AuthSession // set on success
	User    *domain.User        // partial user on needs-approval
	Message string
	Fields  map[string]string
	Err     error
}

// SessionWriter is the write side of a SessionStore.
type SessionWriter interface {
	SetAuth(ctx context.Context, user *domain.User, token string)
}

// InviteChecker is the read side of an InviteGate.
type InviteChecker interface {
	Allows(role domain.Role) bool
	VerifiedCode(role domain.Role) (string, bool)
}

type loginForm struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// IssuanceService normalises the password and OAuth sign-in flows, and the
// registration submission, into a single Outcome shape.
type IssuanceService struct {
	svc      ports.CredentialService
	validate *validator.Validate
	log      zerolog.Logger
}

// NewIssuanceService returns an IssuanceService backed by svc.
func NewIssuanceService(svc ports.CredentialService, log zerolog.Logger) *IssuanceService {
	return &IssuanceService{svc: svc, validate: NewFormValidator(), log: log}
}

// LoginWithPassword validates locally, then exchanges email and password for
// a session. Invalid input never reaches the network.
func (s *IssuanceService) LoginWithPassword(ctx context.Context, store SessionWriter, email, password string) Outcome {
	form := loginForm{Email: email, Password: password}
	if verr := ValidateForm(s.validate, form); verr != nil {
		return s.invalid(domain.MethodPassword, email, "", verr)
	}

	start := time.Now()
	session, err := s.svc.PasswordLogin(ctx, ports.PasswordLoginRequest{Email: email, Password: password})
	metrics.IssuanceDuration.WithLabelValues(string(domain.MethodPassword)).Observe(time.Since(start).Seconds())

	return s.finish(ctx, store, domain.MethodPassword, email, "", session, err)
}

// LoginWithOAuth forwards an opaque provider credential for role. Elevated
// roles are refused before any network call unless gate holds a verified
// invite for exactly that role.
func (s *IssuanceService) LoginWithOAuth(ctx context.Context, store SessionWriter, source ports.ProviderCredentialSource, role domain.Role, gate InviteChecker) Outcome {
	if !role.IsValid() {
		return s.invalid(domain.MethodOAuth, "", role, domain.NewValidationError("role", fieldMessages["role.oneof"]))
	}

	var inviteCode string
	if role.RequiresInvite() {
		code, ok := gate.VerifiedCode(role)
		if !ok || !gate.Allows(role) {
			out := s.invalid(domain.MethodOAuth, "", role, domain.NewValidationError("inviteCode", ErrMessageInviteReq))
			out.Err = domain.ErrInviteRequired
			return out
		}
		inviteCode = code
	}

	credential, err := source.Credential(ctx)
	if err != nil {
		return s.record(Outcome{
			Kind:    OutcomeRejected,
			Method:  domain.MethodOAuth,
			Role:    role,
			Message: "Sign-in with the provider did not complete",
			Err:     err,
		})
	}

	start := time.Now()
	session, err := s.svc.OAuthExchange(ctx, ports.OAuthExchangeRequest{
		ProviderCredential: credential,
		Role:               role,
		InviteCode:         inviteCode,
	})
	metrics.IssuanceDuration.WithLabelValues(string(domain.MethodOAuth)).Observe(time.Since(start).Seconds())

	return s.finish(ctx, store, domain.MethodOAuth, "", role, session, err)
}

// Register submits a completed wizard payload. Elevated roles need a verified
// invite just like OAuth issuance.
func (s *IssuanceService) Register(ctx context.Context, store SessionWriter, payload ports.RegistrationPayload, gate InviteChecker) Outcome {
	if payload.Role.RequiresInvite() {
		code, ok := gate.VerifiedCode(payload.Role)
		if !ok {
			out := s.invalid(domain.MethodRegister, payload.Email, payload.Role, domain.NewValidationError("inviteCode", ErrMessageInviteReq))
			out.Err = domain.ErrInviteRequired
			return out
		}
		payload.InviteCode = code
	}

	start := time.Now()
	session, err := s.svc.Register(ctx, payload)
	metrics.IssuanceDuration.WithLabelValues(string(domain.MethodRegister)).Observe(time.Since(start).Seconds())

	return s.finish(ctx, store, domain.MethodRegister, payload.Email, payload.Role, session, err)
}

func (s *IssuanceService) finish(
	ctx context.Context,
	store SessionWriter,
	method domain.IssuanceMethod,
	email string,
	role domain.Role,
	session *domain.AuthSession,
	err error,
) Outcome {
	if err != nil {
		out := classify(err)
		out.Method, out.Email, out.Role = method, email, role
		if out.User != nil {
			if out.Email == "" {
				out.Email = out.User.Email
			}
			if out.User.Role.IsValid() {
				out.Role = out.User.Role
			}
		}
		return s.record(out)
	}

	if !session.Complete() {
		return s.record(Outcome{
			Kind:    OutcomeRejected,
			Method:  method,
			Email:   email,
			Role:    role,
			Message: ErrMessageBadResponse,
			Err:     errors.New("credential service returned an incomplete session"),
		})
	}

	store.SetAuth(ctx, session.User, session.Token)
	return s.record(Outcome{
		Kind:    OutcomeSuccess,
		Method:  method,
		Email:   session.User.Email,
		Role:    session.User.Role,
		Session: session,
	})
}

func (s *IssuanceService) invalid(method domain.IssuanceMethod, email string, role domain.Role, verr *domain.ValidationError) Outcome {
	return s.record(Outcome{
		Kind:    OutcomeInvalid,
		Method:  method,
		Email:   email,
		Role:    role,
		Message: verr.Error(),
		Fields:  verr.Fields,
		Err:     verr,
	})
}

func (s *IssuanceService) record(out Outcome) Outcome {
	metrics.IssuanceOutcomesTotal.WithLabelValues(string(out.Method), string(out.Kind)).Inc()
	ev := s.log.Info()
	if out.Kind == OutcomeTransport {
		ev = s.log.Warn().Err(out.Err)
	}
	ev.Str("method", string(out.Method)).
		Str("outcome", string(out.Kind)).
		Str("role", out.Role.String()).
		Msg("credential issuance")
	return out
}

// classify maps a credential service error onto an outcome.
func classify(err error) Outcome {
	var approval *domain.ApprovalRequiredError
	var upstream *domain.UpstreamError
	switch {
	case errors.As(err, &approval):
		return Outcome{Kind: OutcomeNeedsApproval, User: approval.User, Message: approval.Error(), Err: err}
	case errors.Is(err, domain.ErrAccessDenied):
		return Outcome{Kind: OutcomeAccessDenied, Message: upstreamMessage(err, domain.ErrAccessDenied.Error()), Err: err}
	case errors.Is(err, domain.ErrTransport):
		return Outcome{Kind: OutcomeTransport, Message: ErrMessageTransport, Err: err}
	case errors.As(err, &upstream):
		return Outcome{Kind: OutcomeRejected, Message: upstream.Error(), Err: err}
	default:
		return Outcome{Kind: OutcomeRejected, Message: err.Error(), Err: err}
	}
}
