package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskflow/portal/internal/api/metrics"
	"github.com/taskflow/portal/internal/core/domain"
	"github.com/taskflow/portal/internal/core/ports"
)

const mirrorTimeout = 5 * time.Second

// SessionStore is the single owner of a visitor's AuthSession. SetAuth,
// RefreshUser and the two Logout variants are the only mutation paths;
// Session is the only read path.
//
// The in-memory copy is authoritative. The persisted mirror is written on
// every change and read once, lazily, on the first Await.
type SessionStore struct {
	visitorID string
	mirror    ports.SessionMirror
	log       zerolog.Logger

	mu      sync.RWMutex
	status  domain.LoadStatus
	session *domain.AuthSession

	loadOnce sync.Once
	loaded   chan struct{}

	// persistMu serialises mirror writes so the mirror converges on the
	// latest in-memory state.
	persistMu sync.Mutex
}

// NewSessionStore returns a store in the LOADING state.
func NewSessionStore(visitorID string, mirror ports.SessionMirror, log zerolog.Logger) *SessionStore {
	return &SessionStore{
		visitorID: visitorID,
		mirror:    mirror,
		log:       log.With().Str("visitor_id", visitorID).Logger(),
		status:    domain.StatusLoading,
		loaded:    make(chan struct{}),
	}
}

// Session returns a snapshot of the current state without blocking.
func (s *SessionStore) Session() domain.SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.SessionSnapshot{Status: s.status, Session: cloneSession(s.session)}
}

// Await starts the startup read of the persisted mirror (once) and waits up
// to wait for it to complete. The returned snapshot may still be LOADING.
func (s *SessionStore) Await(ctx context.Context, wait time.Duration) domain.SessionSnapshot {
	s.loadOnce.Do(func() { go s.load() })

	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-s.loaded:
		case <-timer.C:
		case <-ctx.Done():
		}
	}
	return s.Session()
}

// Loaded is closed once the startup read has finished.
func (s *SessionStore) Loaded() <-chan struct{} { return s.loaded }

// SetAuth replaces the session atomically, then mirrors it. A pair missing
// either half is stored as no session at all.
func (s *SessionStore) SetAuth(ctx context.Context, user *domain.User, token string) {
	next := &domain.AuthSession{User: user.Clone(), Token: token}

	s.mu.Lock()
	if next.Complete() {
		s.session = next
		s.status = domain.StatusReadyAuthenticated
	} else {
		s.session = nil
		s.status = domain.StatusReadyUnauthenticated
	}
	s.mu.Unlock()

	s.persist(ctx)
}

// Logout clears the session and removes the mirror. Every de-authentication
// in the portal goes through here or LogoutIfToken. The cleared session, if
// any, is returned.
func (s *SessionStore) Logout(ctx context.Context) *domain.AuthSession {
	s.mu.Lock()
	prev := s.clearLocked()
	s.mu.Unlock()

	s.persist(ctx)
	return prev
}

// LogoutIfToken clears the session only while it still carries token. A
// session replaced since token was read is left untouched and false is
// returned.
func (s *SessionStore) LogoutIfToken(ctx context.Context, token string) (*domain.AuthSession, bool) {
	s.mu.Lock()
	if s.session == nil || s.session.Token != token {
		s.mu.Unlock()
		return nil, false
	}
	prev := s.clearLocked()
	s.mu.Unlock()

	s.persist(ctx)
	return prev, true
}

// RefreshUser replaces the user of the session issued with token. It reports
// false when the session has been replaced or cleared in the meantime.
func (s *SessionStore) RefreshUser(ctx context.Context, user *domain.User, token string) bool {
	if user == nil {
		return false
	}
	s.mu.Lock()
	if s.session == nil || s.session.Token != token {
		s.mu.Unlock()
		return false
	}
	s.session = &domain.AuthSession{User: user.Clone(), Token: token}
	s.mu.Unlock()

	s.persist(ctx)
	return true
}

// clearLocked must be called with mu held.
func (s *SessionStore) clearLocked() *domain.AuthSession {
	prev := s.session
	s.session = nil
	s.status = domain.StatusReadyUnauthenticated
	return prev
}

// persist writes whatever the in-memory state is at the time the write lock
// is taken. Failures are tolerated.
func (s *SessionStore) persist(ctx context.Context) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mirrorTimeout)
	defer cancel()

	snap := s.Session()
	if snap.Session.Complete() {
		if err := s.mirror.Save(ctx, s.visitorID, snap.Session); err != nil {
			metrics.SessionMirrorErrorsTotal.WithLabelValues("save").Inc()
			s.log.Warn().Err(err).Msg("session mirror write failed, keeping in-memory session")
		}
		return
	}
	if err := s.mirror.Delete(ctx, s.visitorID); err != nil {
		metrics.SessionMirrorErrorsTotal.WithLabelValues("delete").Inc()
		s.log.Warn().Err(err).Msg("session mirror delete failed")
	}
}

func (s *SessionStore) load() {
	defer close(s.loaded)

	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()

	stored, err := s.mirror.Load(ctx, s.visitorID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		metrics.SessionMirrorErrorsTotal.WithLabelValues("load").Inc()
		s.log.Warn().Err(err).Msg("session mirror read failed, starting signed out")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A SetAuth or Logout that ran during the read wins.
	if s.status != domain.StatusLoading {
		return
	}
	if err == nil && stored.Complete() {
		s.session = cloneSession(stored)
		s.status = domain.StatusReadyAuthenticated
		return
	}
	s.status = domain.StatusReadyUnauthenticated
}

func cloneSession(s *domain.AuthSession) *domain.AuthSession {
	if s == nil {
		return nil
	}
	return &domain.AuthSession{User: s.User.Clone(), Token: s.Token}
}
