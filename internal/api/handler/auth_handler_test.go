package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/taskflow/portal/internal/api/middleware"
	"github.com/taskflow/portal/internal/core/domain"
	"github.com/taskflow/portal/internal/core/ports"
	"github.com/taskflow/portal/internal/core/service"
)

type stubCredentials struct {
	loginFn  func(ctx context.Context, req ports.PasswordLoginRequest) (*domain.AuthSession, error)
	inviteFn func(ctx context.Context, code string) error
	calls    atomic.Int32
}

func (s *stubCredentials) PasswordLogin(ctx context.Context, req ports.PasswordLoginRequest) (*domain.AuthSession, error) {
	s.calls.Add(1)
	return s.loginFn(ctx, req)
}

func (s *stubCredentials) OAuthExchange(context.Context, ports.OAuthExchangeRequest) (*domain.AuthSession, error) {
	s.calls.Add(1)
	return nil, errors.New("not used")
}

func (s *stubCredentials) VerifyInvite(ctx context.Context, code string) error {
	s.calls.Add(1)
	return s.inviteFn(ctx, code)
}

func (s *stubCredentials) Register(context.Context, ports.RegistrationPayload) (*domain.AuthSession, error) {
	s.calls.Add(1)
	return nil, errors.New("not used")
}

func (s *stubCredentials) CurrentUser(context.Context, string) (*domain.User, error) {
	s.calls.Add(1)
	return nil, domain.ErrUnauthorized
}

type memStore struct {
	mu   sync.Mutex
	data map[string]any
}

func newMemStore() *memStore { return &memStore{data: make(map[string]any)} }

func (m *memStore) get(id string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[id]
	return v, ok
}

func (m *memStore) put(id string, v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[id] = v
}

func (m *memStore) del(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
}

type memMirror struct{ *memStore }

func (m memMirror) Load(_ context.Context, id string) (*domain.AuthSession, error) {
	if v, ok := m.get(id); ok {
		return v.(*domain.AuthSession), nil
	}
	return nil, domain.ErrNotFound
}

func (m memMirror) Save(_ context.Context, id string, s *domain.AuthSession) error {
	m.put(id, s)
	return nil
}

func (m memMirror) Delete(_ context.Context, id string) error {
	m.del(id)
	return nil
}

type memPending struct{ *memStore }

func (m memPending) Get(_ context.Context, id string) (*domain.PendingMarker, error) {
	if v, ok := m.get(id); ok {
		return v.(*domain.PendingMarker), nil
	}
	return nil, domain.ErrNotFound
}

func (m memPending) Put(_ context.Context, id string, p *domain.PendingMarker) error {
	m.put(id, p)
	return nil
}

func (m memPending) Delete(_ context.Context, id string) error {
	m.del(id)
	return nil
}

type nopJournal struct{}

func (nopJournal) Record(domain.LifecycleEvent) {}

// fixture drives handlers behind the Visitor middleware, carrying the visitor
// cookie between requests like a browser would.
type fixture struct {
	t       *testing.T
	e       *echo.Echo
	creds   *stubCredentials
	portal  *service.Portal
	visitor echo.MiddlewareFunc
	cookie  *http.Cookie
}

func newFixture(t *testing.T, creds *stubCredentials) *fixture {
	t.Helper()
	log := zerolog.Nop()
	registry := service.NewVisitorRegistry(memMirror{newMemStore()}, creds, log)
	lifecycle := service.NewLifecycleController(memPending{newMemStore()}, nopJournal{}, log)
	portal := service.NewPortal(registry, service.NewIssuanceService(creds, log), lifecycle, creds, log)

	e := echo.New()
	e.Validator = NewValidator()
	return &fixture{
		t:      t,
		e:      e,
		creds:  creds,
		portal: portal,
		visitor: middleware.Visitor(middleware.VisitorConfig{
			Secret:   []byte("secret"),
			Registry: registry,
		}),
	}
}

func (f *fixture) call(h echo.HandlerFunc, method, body string) (*httptest.ResponseRecorder, error) {
	f.t.Helper()
	return f.callTarget(h, method, "/", body)
}

func (f *fixture) callTarget(h echo.HandlerFunc, method, target, body string) (*httptest.ResponseRecorder, error) {
	f.t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if f.cookie != nil {
		req.AddCookie(f.cookie)
	}
	rec := httptest.NewRecorder()
	err := f.visitor(h)(f.e.NewContext(req, rec))
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.VisitorCookie {
			f.cookie = c
		}
	}
	return rec, err
}

func (f *fixture) mustCall(h echo.HandlerFunc, method, body string) *httptest.ResponseRecorder {
	f.t.Helper()
	rec, err := f.call(h, method, body)
	if err != nil {
		f.t.Fatalf("handler error: %v", err)
	}
	return rec
}

func clientSession(req ports.PasswordLoginRequest) *domain.AuthSession {
	return &domain.AuthSession{
		User:  &domain.User{ID: "u-1", Email: req.Email, FirstName: "Cli", Role: domain.RoleClient},
		Token: "tok-1",
	}
}

func TestAuthHandler_Login_Success(t *testing.T) {
	f := newFixture(t, &stubCredentials{
		loginFn: func(_ context.Context, req ports.PasswordLoginRequest) (*domain.AuthSession, error) {
			return clientSession(req), nil
		},
	})
	h := NewAuthHandler(f.portal, time.Second)

	rec := f.mustCall(h.Login, http.MethodPost, `{"email":"c@example.com","password":"secret1"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var d service.Decision
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if d.Redirect != domain.DestinationClient || d.User == nil || d.User.Email != "c@example.com" {
		t.Fatalf("unexpected decision %+v", d)
	}

	rec = f.mustCall(h.Session, http.MethodGet, "")
	if !strings.Contains(rec.Body.String(), `"authenticated":true`) {
		t.Fatalf("expected an authenticated session, got %s", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "tok-1") {
		t.Fatalf("session view must not expose the token")
	}
}

func TestAuthHandler_Login_InvalidInputNeverCallsUpstream(t *testing.T) {
	f := newFixture(t, &stubCredentials{})
	h := NewAuthHandler(f.portal, time.Second)

	rec := f.mustCall(h.Login, http.MethodPost, `{"email":"c@example.com","password":"123"}`)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if n := f.creds.calls.Load(); n != 0 {
		t.Fatalf("expected no upstream call, got %d", n)
	}
}

func TestAuthHandler_Login_NeedsApproval(t *testing.T) {
	f := newFixture(t, &stubCredentials{
		loginFn: func(_ context.Context, req ports.PasswordLoginRequest) (*domain.AuthSession, error) {
			return nil, &domain.ApprovalRequiredError{
				Message: "Your account is pending approval",
				User:    &domain.User{Email: req.Email, Role: domain.RoleDeveloper},
			}
		},
	})
	h := NewAuthHandler(f.portal, time.Second)

	rec := f.mustCall(h.Login, http.MethodPost, `{"email":"d@example.com","password":"secret1"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	rec = f.mustCall(h.PendingApproval, http.MethodGet, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "d@example.com") {
		t.Fatalf("expected pending marker view, got %d %s", rec.Code, rec.Body.String())
	}

	rec = f.mustCall(h.EnterLogin, http.MethodGet, "")
	var surface loginSurfaceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &surface); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if surface.Pending == nil || surface.Pending.Email != "d@example.com" {
		t.Fatalf("expected the login surface to report the pending request, got %+v", surface)
	}
}

func TestAuthHandler_PendingApproval_WithoutMarkerRedirects(t *testing.T) {
	f := newFixture(t, &stubCredentials{})
	h := NewAuthHandler(f.portal, time.Second)

	rec := f.mustCall(h.PendingApproval, http.MethodGet, "")

	if rec.Code != http.StatusFound || rec.Header().Get("Location") != domain.DestinationLogin {
		t.Fatalf("expected 302 to /login, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	f := newFixture(t, &stubCredentials{
		loginFn: func(_ context.Context, req ports.PasswordLoginRequest) (*domain.AuthSession, error) {
			return clientSession(req), nil
		},
	})
	h := NewAuthHandler(f.portal, time.Second)
	f.mustCall(h.Login, http.MethodPost, `{"email":"c@example.com","password":"secret1"}`)

	rec := f.mustCall(h.Logout, http.MethodPost, "")
	if !strings.Contains(rec.Body.String(), `"redirect":"/login"`) {
		t.Fatalf("unexpected logout body %s", rec.Body.String())
	}

	rec = f.mustCall(h.Session, http.MethodGet, "")
	if !strings.Contains(rec.Body.String(), `"authenticated":false`) {
		t.Fatalf("expected a signed-out session, got %s", rec.Body.String())
	}
}

func TestAuthHandler_VerifyInvite(t *testing.T) {
	cases := []struct {
		name string
		body string
		err  error
		code int
	}{
		{"verified", `{"role":"DEVELOPER","code":"DEV-1"}`, nil, http.StatusOK},
		{"lowercase role", `{"role":"developer","code":"DEV-1"}`, nil, http.StatusOK},
		{"empty code", `{"role":"DEVELOPER","code":"  "}`, nil, http.StatusUnprocessableEntity},
		{"rejected", `{"role":"DEVELOPER","code":"nope"}`, &domain.UpstreamError{Status: 400, Message: "Invalid or expired invite code"}, http.StatusUnprocessableEntity},
		{"unreachable", `{"role":"ADMIN","code":"ADM-1"}`, fmt.Errorf("%w: dial", domain.ErrTransport), http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, &stubCredentials{
				inviteFn: func(context.Context, string) error { return tc.err },
			})
			h := NewAuthHandler(f.portal, time.Second)

			rec := f.mustCall(h.VerifyInvite, http.MethodPost, tc.body)
			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d: %s", tc.code, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestAuthHandler_SelectOAuthRole_RequiresRole(t *testing.T) {
	f := newFixture(t, &stubCredentials{})
	h := NewAuthHandler(f.portal, time.Second)

	_, err := f.call(h.SelectOAuthRole, http.MethodPost, `{}`)

	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Fields["role"] == "" {
		t.Fatalf("expected a role validation error, got %v", err)
	}
}

func TestAuthHandler_SelectOAuthRole_NormalisesCase(t *testing.T) {
	f := newFixture(t, &stubCredentials{})
	h := NewAuthHandler(f.portal, time.Second)

	rec := f.mustCall(h.SelectOAuthRole, http.MethodPost, `{"role":" developer "}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"role":"DEVELOPER"`) {
		t.Fatalf("expected the canonical role, got %s", rec.Body.String())
	}
}

func TestAuthHandler_SelectOAuthRole_UnknownRole(t *testing.T) {
	f := newFixture(t, &stubCredentials{})
	h := NewAuthHandler(f.portal, time.Second)

	_, err := f.call(h.SelectOAuthRole, http.MethodPost, `{"role":"OWNER"}`)

	if !errors.Is(err, domain.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestAuthHandler_Me_WithoutSession(t *testing.T) {
	f := newFixture(t, &stubCredentials{})
	h := NewAuthHandler(f.portal, time.Second)

	_, err := f.call(h.Me, http.MethodGet, "")

	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if n := f.creds.calls.Load(); n != 0 {
		t.Fatalf("expected no upstream call without a session, got %d", n)
	}
}

func TestDecisionStatus(t *testing.T) {
	cases := map[service.OutcomeKind]int{
		service.OutcomeSuccess:       http.StatusOK,
		service.OutcomeNeedsApproval: http.StatusAccepted,
		service.OutcomeAccessDenied:  http.StatusForbidden,
		service.OutcomeInvalid:       http.StatusUnprocessableEntity,
		service.OutcomeTransport:     http.StatusServiceUnavailable,
		service.OutcomeRejected:      http.StatusUnauthorized,
	}
	for kind, want := range cases {
		if got := decisionStatus(service.Decision{Outcome: kind}); got != want {
			t.Errorf("%s: expected %d, got %d", kind, want, got)
		}
	}
}
