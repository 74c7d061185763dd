package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskflow/portal/internal/core/domain"
)

func newTestLifecycle() (*LifecycleController, *memPending, *recordingJournal) {
	pending := newMemPending()
	journal := &recordingJournal{}
	lc := NewLifecycleController(pending, journal, zerolog.Nop())
	lc.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return lc, pending, journal
}

func TestLifecycle_NeedsApprovalWritesMarker(t *testing.T) {
	lc, pending, journal := newTestLifecycle()
	out := Outcome{Kind: OutcomeNeedsApproval, Method: domain.MethodRegister, Email: "d@example.com", Role: domain.RoleDeveloper, Message: "Awaiting approval"}

	d := lc.Resolve(context.Background(), "v1", out)

	if d.State != domain.StatePendingApproval || d.Redirect != domain.DestinationPendingApproval {
		t.Fatalf("unexpected decision: %+v", d)
	}
	marker, err := pending.Get(context.Background(), "v1")
	if err != nil {
		t.Fatalf("expected pending marker: %v", err)
	}
	if marker.Email != "d@example.com" || marker.Role != domain.RoleDeveloper || marker.RequestedAt.IsZero() {
		t.Fatalf("unexpected marker: %+v", marker)
	}
	if kinds := journal.kinds(); len(kinds) != 1 || kinds[0] != domain.EventPendingApproval {
		t.Fatalf("unexpected journal: %v", kinds)
	}
}

func TestLifecycle_SuccessClearsMarkerAndRoutesByRole(t *testing.T) {
	cases := map[domain.Role]string{
		domain.RoleClient:     "/dashboard/client",
		domain.RoleDeveloper:  "/dashboard/developer",
		domain.RoleAdmin:      "/dashboard/admin",
		domain.RoleSuperAdmin: "/dashboard/admin",
	}
	for role, want := range cases {
		lc, pending, _ := newTestLifecycle()
		_ = pending.Put(context.Background(), "v1", &domain.PendingMarker{Email: "x@example.com"})
		out := Outcome{Kind: OutcomeSuccess, Session: &domain.AuthSession{User: testUser(role), Token: "tok"}}

		d := lc.Resolve(context.Background(), "v1", out)

		if d.State != domain.StateAuthenticated || d.Redirect != want {
			t.Fatalf("%s: expected redirect %s, got %+v", role, want, d)
		}
		if _, err := pending.Get(context.Background(), "v1"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("%s: pending marker must be cleared", role)
		}
	}
}

func TestLifecycle_AccessDeniedIsDistinctFromPending(t *testing.T) {
	lc, pending, _ := newTestLifecycle()

	d := lc.Resolve(context.Background(), "v1", Outcome{Kind: OutcomeAccessDenied, Message: "Account deactivated"})

	if d.State != domain.StateRejected || d.Redirect != domain.DestinationAccountDisabled || d.Message != "Account deactivated" {
		t.Fatalf("unexpected decision: %+v", d)
	}
	if _, err := pending.Get(context.Background(), "v1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("access denied must not write a pending marker")
	}
}

func TestLifecycle_InvalidOutcomeIsNotJournaled(t *testing.T) {
	lc, _, journal := newTestLifecycle()

	d := lc.Resolve(context.Background(), "v1", Outcome{Kind: OutcomeInvalid, Fields: map[string]string{"email": "Email is required"}})

	if d.State != domain.StateRejected || d.Fields["email"] == "" || d.Redirect != "" {
		t.Fatalf("unexpected decision: %+v", d)
	}
	if len(journal.kinds()) != 0 {
		t.Fatalf("local validation failures are not lifecycle events")
	}
}

func TestLifecycle_EnterLoginKeepsPendingMarker(t *testing.T) {
	lc, pending, _ := newTestLifecycle()
	_ = pending.Put(context.Background(), "v1", &domain.PendingMarker{Email: "d@example.com", Role: domain.RoleDeveloper})
	store := NewSessionStore("v1", newMemMirror(), zerolog.Nop())
	store.Await(context.Background(), time.Second)

	surface := lc.EnterLogin(context.Background(), "v1", store)

	if surface.Pending == nil || surface.Pending.Email != "d@example.com" {
		t.Fatalf("expected pending marker reported, got %+v", surface)
	}
	if _, err := pending.Get(context.Background(), "v1"); err != nil {
		t.Fatalf("marker must not be cleared on login entry: %v", err)
	}
}

func TestLifecycle_EnterLoginClearsStaleSession(t *testing.T) {
	lc, _, _ := newTestLifecycle()
	mirror := newMemMirror()
	store := NewSessionStore("v1", mirror, zerolog.Nop())
	store.SetAuth(context.Background(), testUser(domain.RoleClient), "tok")

	surface := lc.EnterLogin(context.Background(), "v1", store)

	if surface.Pending != nil {
		t.Fatalf("expected no pending marker")
	}
	if store.Session().Authenticated() || mirror.get("v1") != nil {
		t.Fatalf("expected stale session cleared")
	}
}

func TestLifecycle_LogoutIsJournaled(t *testing.T) {
	lc, _, journal := newTestLifecycle()
	store := NewSessionStore("v1", newMemMirror(), zerolog.Nop())
	store.SetAuth(context.Background(), testUser(domain.RoleAdmin), "tok")

	lc.Logout(context.Background(), "v1", store)

	if store.Session().Authenticated() {
		t.Fatalf("expected signed out")
	}
	journal.mu.Lock()
	defer journal.mu.Unlock()
	if len(journal.events) != 1 || journal.events[0].Kind != domain.EventLoggedOut || journal.events[0].Role != domain.RoleAdmin {
		t.Fatalf("unexpected journal: %+v", journal.events)
	}
}

func TestLifecycle_ExpireOnlyClearsMatchingToken(t *testing.T) {
	lc, _, journal := newTestLifecycle()
	store := NewSessionStore("v1", newMemMirror(), zerolog.Nop())
	store.SetAuth(context.Background(), testUser(domain.RoleDeveloper), "tok-2")

	if lc.Expire(context.Background(), "v1", store, "tok-1") {
		t.Fatalf("a superseded token must not sign the visitor out")
	}
	if !lc.Expire(context.Background(), "v1", store, "tok-2") {
		t.Fatalf("expected the current token to be expired")
	}

	journal.mu.Lock()
	defer journal.mu.Unlock()
	if len(journal.events) != 1 || journal.events[0].Kind != domain.EventLoggedOut || journal.events[0].Role != domain.RoleDeveloper {
		t.Fatalf("unexpected journal: %+v", journal.events)
	}
}
