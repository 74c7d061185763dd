package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/taskflow/portal/internal/core/domain"
	"github.com/taskflow/portal/internal/core/ports"
)

type stubCredentials struct {
	passwordFn func(ctx context.Context, req ports.PasswordLoginRequest) (*domain.AuthSession, error)
	oauthFn    func(ctx context.Context, req ports.OAuthExchangeRequest) (*domain.AuthSession, error)
	inviteFn   func(ctx context.Context, code string) error
	registerFn func(ctx context.Context, p ports.RegistrationPayload) (*domain.AuthSession, error)
	meFn       func(ctx context.Context, token string) (*domain.User, error)

	calls atomic.Int32
}

func (s *stubCredentials) PasswordLogin(ctx context.Context, req ports.PasswordLoginRequest) (*domain.AuthSession, error) {
	s.calls.Add(1)
	if s.passwordFn == nil {
		return nil, errors.New("unexpected PasswordLogin call")
	}
	return s.passwordFn(ctx, req)
}

func (s *stubCredentials) OAuthExchange(ctx context.Context, req ports.OAuthExchangeRequest) (*domain.AuthSession, error) {
	s.calls.Add(1)
	if s.oauthFn == nil {
		return nil, errors.New("unexpected OAuthExchange call")
	}
	return s.oauthFn(ctx, req)
}

func (s *stubCredentials) VerifyInvite(ctx context.Context, code string) error {
	s.calls.Add(1)
	if s.inviteFn == nil {
		return errors.New("unexpected VerifyInvite call")
	}
	return s.inviteFn(ctx, code)
}

func (s *stubCredentials) Register(ctx context.Context, p ports.RegistrationPayload) (*domain.AuthSession, error) {
	s.calls.Add(1)
	if s.registerFn == nil {
		return nil, errors.New("unexpected Register call")
	}
	return s.registerFn(ctx, p)
}

func (s *stubCredentials) CurrentUser(ctx context.Context, token string) (*domain.User, error) {
	s.calls.Add(1)
	if s.meFn == nil {
		return nil, errors.New("unexpected CurrentUser call")
	}
	return s.meFn(ctx, token)
}

// memMirror is an in-memory SessionMirror. Setting block delays Load until
// the channel is closed.
type memMirror struct {
	mu       sync.Mutex
	sessions map[string]*domain.AuthSession
	saveErr  error
	loadErr  error
	block    chan struct{}
}

func newMemMirror() *memMirror {
	return &memMirror{sessions: make(map[string]*domain.AuthSession)}
}

func (m *memMirror) Load(_ context.Context, id string) (*domain.AuthSession, error) {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneSession(s), nil
}

func (m *memMirror) Save(_ context.Context, id string, s *domain.AuthSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.sessions[id] = cloneSession(s)
	return nil
}

func (m *memMirror) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memMirror) get(id string) *domain.AuthSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

type memPending struct {
	mu      sync.Mutex
	markers map[string]*domain.PendingMarker
}

func newMemPending() *memPending {
	return &memPending{markers: make(map[string]*domain.PendingMarker)}
}

func (p *memPending) Get(_ context.Context, id string) (*domain.PendingMarker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.markers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (p *memPending) Put(_ context.Context, id string, m *domain.PendingMarker) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := *m
	p.markers[id] = &cp
	return nil
}

func (p *memPending) Delete(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.markers, id)
	return nil
}

type recordingJournal struct {
	mu     sync.Mutex
	events []domain.LifecycleEvent
}

func (j *recordingJournal) Record(ev domain.LifecycleEvent) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, ev)
}

func (j *recordingJournal) kinds() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, 0, len(j.events))
	for _, ev := range j.events {
		out = append(out, ev.Kind)
	}
	return out
}

// recordingWriter is a SessionWriter that remembers every SetAuth.
type recordingWriter struct {
	calls []domain.AuthSession
}

func (w *recordingWriter) SetAuth(_ context.Context, user *domain.User, token string) {
	w.calls = append(w.calls, domain.AuthSession{User: user, Token: token})
}

// fixedInvite is an InviteChecker with a fixed verified (role, code) pair.
type fixedInvite struct {
	role domain.Role
	code string
}

func (f fixedInvite) Allows(role domain.Role) bool {
	return !role.RequiresInvite() || (f.code != "" && role == f.role)
}

func (f fixedInvite) VerifiedCode(role domain.Role) (string, bool) {
	if f.code == "" || role != f.role {
		return "", false
	}
	return f.code, true
}

func testUser(role domain.Role) *domain.User {
	return &domain.User{ID: "u-1", Email: "user@example.com", FirstName: "Test", Role: role}
}
