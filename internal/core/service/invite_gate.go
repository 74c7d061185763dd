package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/taskflow/portal/internal/api/metrics"
	"github.com/taskflow/portal/internal/core/domain"
	"github.com/taskflow/portal/internal/core/ports"
)

// InviteGate gates elevated-role issuance behind a one-time code verified
// separately from the issuance call.
//
//	UNVERIFIED → VERIFYING → VERIFIED | UNVERIFIED(error)
//
// Any change to the selected role or the code text drops back to UNVERIFIED
// and bumps the generation, so a response for an older (role, code) pair is
// never applied.
type InviteGate struct {
	svc ports.CredentialService
	log zerolog.Logger

	mu         sync.Mutex
	role       domain.Role
	code       string
	state      domain.InviteState
	errMsg     string
	generation uint64
}

// NewInviteGate returns a gate in the UNVERIFIED state.
func NewInviteGate(svc ports.CredentialService, log zerolog.Logger) *InviteGate {
	return &InviteGate{svc: svc, log: log, state: domain.InviteUnverified}
}

// SelectRole records the role chosen on the role-selection surface.
func (g *InviteGate) SelectRole(role domain.Role) domain.InviteVerification {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.setRole(role)
	return g.snapshot()
}

// EditCode records the current text of the invite code input.
func (g *InviteGate) EditCode(code string) domain.InviteVerification {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.setCode(code)
	return g.snapshot()
}

// Verify checks code for role against the credential service.
func (g *InviteGate) Verify(ctx context.Context, code string, role domain.Role) (domain.InviteVerification, error) {
	code = strings.TrimSpace(code)

	g.mu.Lock()
	g.setRole(role)
	g.setCode(code)

	if code == "" {
		g.errMsg = ErrMessageInviteEmpty
		v := g.snapshot()
		g.mu.Unlock()
		metrics.InviteVerificationsTotal.WithLabelValues("empty").Inc()
		return v, domain.ErrInviteCodeEmpty
	}
	switch g.state {
	case domain.InviteVerifying:
		v := g.snapshot()
		g.mu.Unlock()
		return v, domain.ErrRequestInFlight
	case domain.InviteVerified:
		v := g.snapshot()
		g.mu.Unlock()
		return v, nil
	}

	g.state = domain.InviteVerifying
	g.errMsg = ""
	gen := g.generation
	g.mu.Unlock()

	err := g.svc.VerifyInvite(ctx, code)

	g.mu.Lock()
	defer g.mu.Unlock()

	if gen != g.generation {
		metrics.InviteVerificationsTotal.WithLabelValues("stale").Inc()
		g.log.Debug().Str("role", role.String()).Msg("discarding stale invite verification")
		return g.snapshot(), domain.ErrStaleVerification
	}

	if err != nil {
		g.state = domain.InviteUnverified
		if errors.Is(err, domain.ErrTransport) {
			g.errMsg = ErrMessageTransport
			metrics.InviteVerificationsTotal.WithLabelValues("transport").Inc()
			return g.snapshot(), err
		}
		g.errMsg = upstreamMessage(err, "Invalid invite code")
		metrics.InviteVerificationsTotal.WithLabelValues("rejected").Inc()
		return g.snapshot(), fmt.Errorf("%w: %s", domain.ErrInviteRejected, g.errMsg)
	}

	g.state = domain.InviteVerified
	metrics.InviteVerificationsTotal.WithLabelValues("verified").Inc()
	return g.snapshot(), nil
}

// Allows reports whether issuance for role may proceed.
func (g *InviteGate) Allows(role domain.Role) bool {
	if !role.RequiresInvite() {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == domain.InviteVerified && g.role == role
}

// VerifiedCode returns the code verified for role, if any.
func (g *InviteGate) VerifiedCode(role domain.Role) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != domain.InviteVerified || g.role != role {
		return "", false
	}
	return g.code, true
}

// Snapshot returns the current verification state.
func (g *InviteGate) Snapshot() domain.InviteVerification {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshot()
}

// Close resets all transient state, as when the role-selection surface is
// dismissed. In-flight verifications become stale.
func (g *InviteGate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.role = ""
	g.code = ""
	g.reset()
}

func (g *InviteGate) setRole(role domain.Role) {
	if role != g.role {
		g.role = role
		g.reset()
	}
}

func (g *InviteGate) setCode(code string) {
	if code != g.code {
		g.code = code
		g.reset()
	}
}

func (g *InviteGate) reset() {
	g.state = domain.InviteUnverified
	g.errMsg = ""
	g.generation++
}

func (g *InviteGate) snapshot() domain.InviteVerification {
	return domain.InviteVerification{
		Code:     g.code,
		Role:     g.role,
		State:    g.state,
		Verified: g.state == domain.InviteVerified,
		Error:    g.errMsg,
	}
}

// upstreamMessage extracts the verbatim server message from err.
func upstreamMessage(err error, fallback string) string {
	var ue *domain.UpstreamError
	if errors.As(err, &ue) && ue.Message != "" {
		return ue.Message
	}
	return fallback
}
