package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskflow/portal/internal/core/domain"
)

func TestSessionStore_StartsLoading(t *testing.T) {
	store := NewSessionStore("v1", newMemMirror(), zerolog.Nop())

	if got := store.Session().Status; got != domain.StatusLoading {
		t.Fatalf("expected LOADING before first Await, got %s", got)
	}
}

func TestSessionStore_AwaitRestoresMirroredSession(t *testing.T) {
	mirror := newMemMirror()
	mirror.sessions["v1"] = &domain.AuthSession{User: testUser(domain.RoleAdmin), Token: "tok"}
	store := NewSessionStore("v1", mirror, zerolog.Nop())

	snap := store.Await(context.Background(), time.Second)
	if !snap.Authenticated() {
		t.Fatalf("expected authenticated snapshot, got %+v", snap)
	}
	if snap.Session.User.Role != domain.RoleAdmin || snap.Session.Token != "tok" {
		t.Fatalf("unexpected session: %+v", snap.Session)
	}
}

func TestSessionStore_DiscardsIncompleteMirrorRecord(t *testing.T) {
	mirror := newMemMirror()
	mirror.sessions["v1"] = &domain.AuthSession{User: testUser(domain.RoleClient)}
	store := NewSessionStore("v1", mirror, zerolog.Nop())

	snap := store.Await(context.Background(), time.Second)
	if snap.Status != domain.StatusReadyUnauthenticated || snap.Session != nil {
		t.Fatalf("expected unauthenticated, got %+v", snap)
	}
}

func TestSessionStore_MirrorReadFailureStartsSignedOut(t *testing.T) {
	mirror := newMemMirror()
	mirror.loadErr = errors.New("connection refused")
	store := NewSessionStore("v1", mirror, zerolog.Nop())

	if snap := store.Await(context.Background(), time.Second); snap.Status != domain.StatusReadyUnauthenticated {
		t.Fatalf("expected READY_UNAUTHENTICATED, got %s", snap.Status)
	}
}

func TestSessionStore_AwaitTimesOutWhileLoading(t *testing.T) {
	mirror := newMemMirror()
	mirror.block = make(chan struct{})
	mirror.sessions["v1"] = &domain.AuthSession{User: testUser(domain.RoleClient), Token: "tok"}
	store := NewSessionStore("v1", mirror, zerolog.Nop())

	if snap := store.Await(context.Background(), 20*time.Millisecond); snap.Status != domain.StatusLoading {
		t.Fatalf("expected LOADING while mirror read is pending, got %s", snap.Status)
	}

	close(mirror.block)
	<-store.Loaded()
	if snap := store.Session(); !snap.Authenticated() {
		t.Fatalf("expected authenticated after load, got %+v", snap)
	}
}

func TestSessionStore_SetAuthDuringLoadWins(t *testing.T) {
	mirror := newMemMirror()
	mirror.block = make(chan struct{})
	store := NewSessionStore("v1", mirror, zerolog.Nop())

	store.Await(context.Background(), 0)
	store.SetAuth(context.Background(), testUser(domain.RoleDeveloper), "fresh")
	close(mirror.block)
	<-store.Loaded()

	snap := store.Session()
	if !snap.Authenticated() || snap.Session.Token != "fresh" {
		t.Fatalf("expected the SetAuth session to survive the load, got %+v", snap)
	}
}

func TestSessionStore_SetAuthMirrorsAndIsIdempotent(t *testing.T) {
	mirror := newMemMirror()
	store := NewSessionStore("v1", mirror, zerolog.Nop())
	user := testUser(domain.RoleClient)

	store.SetAuth(context.Background(), user, "tok")
	store.SetAuth(context.Background(), user, "tok")

	if got := mirror.get("v1"); got == nil || got.Token != "tok" {
		t.Fatalf("expected mirrored session, got %+v", got)
	}
	if snap := store.Session(); !snap.Authenticated() {
		t.Fatalf("expected authenticated, got %+v", snap)
	}
}

func TestSessionStore_SetAuthIncompletePairStoresNothing(t *testing.T) {
	mirror := newMemMirror()
	store := NewSessionStore("v1", mirror, zerolog.Nop())
	store.SetAuth(context.Background(), testUser(domain.RoleClient), "tok")

	store.SetAuth(context.Background(), testUser(domain.RoleClient), "")

	snap := store.Session()
	if snap.Status != domain.StatusReadyUnauthenticated || snap.Session != nil {
		t.Fatalf("expected no session, got %+v", snap)
	}
	if mirror.get("v1") != nil {
		t.Fatalf("expected mirror cleared")
	}
}

func TestSessionStore_MirrorWriteFailureKeepsMemory(t *testing.T) {
	mirror := newMemMirror()
	mirror.saveErr = errors.New("disk full")
	store := NewSessionStore("v1", mirror, zerolog.Nop())

	store.SetAuth(context.Background(), testUser(domain.RoleClient), "tok")

	if snap := store.Session(); !snap.Authenticated() {
		t.Fatalf("in-memory session must stay authoritative, got %+v", snap)
	}
}

func TestSessionStore_LogoutClearsMirror(t *testing.T) {
	mirror := newMemMirror()
	store := NewSessionStore("v1", mirror, zerolog.Nop())
	store.SetAuth(context.Background(), testUser(domain.RoleClient), "tok")

	store.Logout(context.Background())

	if snap := store.Session(); snap.Status != domain.StatusReadyUnauthenticated {
		t.Fatalf("expected unauthenticated, got %s", snap.Status)
	}
	if mirror.get("v1") != nil {
		t.Fatalf("expected mirror cleared")
	}
}

func TestSessionStore_LogoutIfToken(t *testing.T) {
	mirror := newMemMirror()
	store := NewSessionStore("v1", mirror, zerolog.Nop())
	ctx := context.Background()
	store.SetAuth(ctx, testUser(domain.RoleClient), "tok-2")

	if prev, ok := store.LogoutIfToken(ctx, "tok-1"); ok || prev != nil {
		t.Fatalf("a different token must not clear the session")
	}
	if !store.Session().Authenticated() || mirror.get("v1") == nil {
		t.Fatalf("expected the session and its mirror to stay")
	}

	prev, ok := store.LogoutIfToken(ctx, "tok-2")
	if !ok || prev == nil || prev.Token != "tok-2" {
		t.Fatalf("expected the matching session cleared, got %+v %v", prev, ok)
	}
	if store.Session().Authenticated() || mirror.get("v1") != nil {
		t.Fatalf("expected the session and its mirror cleared")
	}
	if _, ok := store.LogoutIfToken(ctx, "tok-2"); ok {
		t.Fatalf("a second call has nothing to clear")
	}
}

func TestSessionStore_RefreshUserNeedsCurrentToken(t *testing.T) {
	store := NewSessionStore("v1", newMemMirror(), zerolog.Nop())
	ctx := context.Background()
	store.SetAuth(ctx, testUser(domain.RoleClient), "tok")

	if store.RefreshUser(ctx, testUser(domain.RoleAdmin), "other") {
		t.Fatalf("refresh for another token must be refused")
	}
	if !store.RefreshUser(ctx, testUser(domain.RoleAdmin), "tok") {
		t.Fatalf("refresh for the current token must apply")
	}
	if got := store.Session().Session.User.Role; got != domain.RoleAdmin {
		t.Fatalf("expected ADMIN, got %s", got)
	}
}

func TestSessionStore_SnapshotIsACopy(t *testing.T) {
	store := NewSessionStore("v1", newMemMirror(), zerolog.Nop())
	store.SetAuth(context.Background(), testUser(domain.RoleClient), "tok")

	snap := store.Session()
	snap.Session.User.Role = domain.RoleSuperAdmin

	if store.Session().Session.User.Role != domain.RoleClient {
		t.Fatalf("snapshot mutation leaked into the store")
	}
}
