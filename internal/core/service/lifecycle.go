package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/taskflow/portal/internal/core/domain"
	"github.com/taskflow/portal/internal/core/ports"
)

// Decision is where the lifecycle controller sends the visitor after an
// issuance attempt.
type Decision struct {
	State    domain.LifecycleState `json:"state"`
	Outcome  OutcomeKind           `json:"outcome"`
	Redirect string                `json:"redirect,omitempty"`
	Message  string                `json:"message,omitempty"`
	Fields   map[string]string     `json:"fields,omitempty"`
	User     *domain.User          `json:"user,omitempty"`
}

// LoginSurface describes what the login surface should show on entry.
type LoginSurface struct {
	Pending *domain.PendingMarker `json:"pending,omitempty"`
}

// LifecycleController interprets issuance outcomes that are not a plain
// success or failure, and owns the pending-approval marker.
type LifecycleController struct {
	pending ports.PendingStore
	journal ports.LifecycleJournal
	log     zerolog.Logger
	now     func() time.Time
}

// NewLifecycleController wires the controller to its stores.
func NewLifecycleController(pending ports.PendingStore, journal ports.LifecycleJournal, log zerolog.Logger) *LifecycleController {
	return &LifecycleController{
		pending: pending,
		journal: journal,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Resolve routes an outcome. The session itself has already been written by
// the issuance service on success; Resolve never writes a session.
func (l *LifecycleController) Resolve(ctx context.Context, visitorID string, out Outcome) Decision {
	switch out.Kind {
	case OutcomeSuccess:
		user := out.Session.User
		l.clearPending(ctx, visitorID)
		l.emit(visitorID, domain.EventAuthenticated, out, "")
		return Decision{
			State:    domain.StateAuthenticated,
			Outcome:  out.Kind,
			Redirect: user.Role.Destination(),
			User:     user.Clone(),
		}

	case OutcomeNeedsApproval:
		marker := &domain.PendingMarker{
			Email:       out.Email,
			Role:        out.Role,
			RequestedAt: l.now(),
			User:        out.User.Clone(),
		}
		if err := l.pending.Put(ctx, visitorID, marker); err != nil {
			l.log.Warn().Err(err).Str("visitor_id", visitorID).Msg("failed to persist pending marker")
		}
		l.emit(visitorID, domain.EventPendingApproval, out, out.Message)
		return Decision{
			State:    domain.StatePendingApproval,
			Outcome:  out.Kind,
			Redirect: domain.DestinationPendingApproval,
			Message:  out.Message,
		}

	case OutcomeAccessDenied:
		l.emit(visitorID, domain.EventAccessDenied, out, out.Message)
		return Decision{
			State:    domain.StateRejected,
			Outcome:  out.Kind,
			Redirect: domain.DestinationAccountDisabled,
			Message:  out.Message,
		}

	default:
		if out.Kind != OutcomeInvalid {
			l.emit(visitorID, domain.EventRejected, out, out.Message)
		}
		return Decision{
			State:   domain.StateRejected,
			Outcome: out.Kind,
			Message: out.Message,
			Fields:  out.Fields,
		}
	}
}

// EnterLogin prepares the login surface. With an unresolved pending marker
// nothing is cleared; otherwise any stale session remnants are signed out.
func (l *LifecycleController) EnterLogin(ctx context.Context, visitorID string, store *SessionStore) LoginSurface {
	marker, err := l.pending.Get(ctx, visitorID)
	switch {
	case err == nil:
		return LoginSurface{Pending: marker}
	case errors.Is(err, domain.ErrNotFound):
		if store.Session().Status != domain.StatusReadyUnauthenticated {
			store.Logout(ctx)
		}
		return LoginSurface{}
	default:
		// Unknown marker state: leave the session alone.
		l.log.Warn().Err(err).Str("visitor_id", visitorID).Msg("pending marker lookup failed")
		return LoginSurface{}
	}
}

// Pending returns the visitor's pending marker, or domain.ErrNotFound.
func (l *LifecycleController) Pending(ctx context.Context, visitorID string) (*domain.PendingMarker, error) {
	return l.pending.Get(ctx, visitorID)
}

// Logout signs the visitor out and records it.
func (l *LifecycleController) Logout(ctx context.Context, visitorID string, store *SessionStore) {
	l.recordLogout(visitorID, store.Logout(ctx))
}

// Expire signs the visitor out after the credential service refused token.
// It does nothing, and returns false, when the visitor has since signed out
// or signed in again.
func (l *LifecycleController) Expire(ctx context.Context, visitorID string, store *SessionStore, token string) bool {
	prev, ok := store.LogoutIfToken(ctx, token)
	if !ok {
		return false
	}
	l.recordLogout(visitorID, prev)
	return true
}

func (l *LifecycleController) recordLogout(visitorID string, prev *domain.AuthSession) {
	ev := Outcome{}
	if prev.Complete() {
		ev.Email, ev.Role = prev.User.Email, prev.User.Role
	}
	l.emit(visitorID, domain.EventLoggedOut, ev, "")
}

func (l *LifecycleController) clearPending(ctx context.Context, visitorID string) {
	if err := l.pending.Delete(ctx, visitorID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		l.log.Warn().Err(err).Str("visitor_id", visitorID).Msg("failed to clear pending marker")
	}
}

func (l *LifecycleController) emit(visitorID, kind string, out Outcome, msg string) {
	l.journal.Record(domain.LifecycleEvent{
		ID:         uuid.NewString(),
		VisitorID:  visitorID,
		Kind:       kind,
		Method:     out.Method,
		Email:      out.Email,
		Role:       out.Role,
		Message:    msg,
		OccurredAt: l.now(),
	})
}
