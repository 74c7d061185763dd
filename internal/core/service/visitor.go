package service

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskflow/portal/internal/api/metrics"
	"github.com/taskflow/portal/internal/core/domain"
	"github.com/taskflow/portal/internal/core/ports"
)

// Actions guarded against duplicate submission.
const (
	ActionPasswordLogin = "password_login"
	ActionOAuthLogin    = "oauth_login"
	ActionRegister      = "register"
)

// Visitor bundles the client-side state owned by one browser. The OAuth
// surface and the registration wizard each verify invites through their own
// gate; a code verified in one never unlocks the other.
type Visitor struct {
	ID                 string
	Session            *SessionStore
	OAuthInvite        *InviteGate
	RegistrationInvite *InviteGate
	Wizard             *RegistrationWizard

	mu       sync.Mutex
	inflight map[string]struct{}
	lastSeen atomic.Int64
}

// Begin marks action as in flight. The returned release func must be called
// when the action completes. A second Begin for the same action before
// release returns domain.ErrRequestInFlight.
func (v *Visitor) Begin(action string) (release func(), err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, busy := v.inflight[action]; busy {
		return nil, domain.ErrRequestInFlight
	}
	v.inflight[action] = struct{}{}
	return func() {
		v.mu.Lock()
		delete(v.inflight, action)
		v.mu.Unlock()
	}, nil
}

func (v *Visitor) busy() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.inflight) > 0
}

func (v *Visitor) touch(now time.Time) { v.lastSeen.Store(now.UnixNano()) }

// VisitorRegistry hands out exactly one Visitor per visitor ID.
type VisitorRegistry struct {
	mirror      ports.SessionMirror
	credentials ports.CredentialService
	log         zerolog.Logger
	now         func() time.Time

	mu       sync.Mutex
	visitors map[string]*Visitor
}

// NewVisitorRegistry returns an empty registry.
func NewVisitorRegistry(mirror ports.SessionMirror, credentials ports.CredentialService, log zerolog.Logger) *VisitorRegistry {
	return &VisitorRegistry{
		mirror:      mirror,
		credentials: credentials,
		log:         log,
		now:         time.Now,
		visitors:    make(map[string]*Visitor),
	}
}

// Get returns the visitor for id, creating it on first use.
func (r *VisitorRegistry) Get(id string) *Visitor {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.visitors[id]
	if !ok {
		gateLog := r.log.With().Str("visitor_id", id).Logger()
		v = &Visitor{
			ID:                 id,
			Session:            NewSessionStore(id, r.mirror, r.log),
			OAuthInvite:        NewInviteGate(r.credentials, gateLog.With().Str("flow", "oauth").Logger()),
			RegistrationInvite: NewInviteGate(r.credentials, gateLog.With().Str("flow", "registration").Logger()),
			Wizard:             NewRegistrationWizard(),
			inflight:           make(map[string]struct{}),
		}
		r.visitors[id] = v
		metrics.ActiveVisitors.Set(float64(len(r.visitors)))
	}
	v.touch(r.now())
	return v
}

// Sweep drops visitors idle for longer than maxIdle and returns how many were
// removed. Persisted sessions survive; the next request reloads them.
func (r *VisitorRegistry) Sweep(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle).UnixNano()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, v := range r.visitors {
		if v.lastSeen.Load() < cutoff && !v.busy() {
			delete(r.visitors, id)
			removed++
		}
	}
	metrics.ActiveVisitors.Set(float64(len(r.visitors)))
	return removed
}

// Len reports the number of visitors held in memory.
func (r *VisitorRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.visitors)
}
