package service

import (
	"testing"

	"github.com/taskflow/portal/internal/core/domain"
)

func snapshotFor(role domain.Role, perms map[string]bool) domain.SessionSnapshot {
	u := testUser(role)
	u.Permissions = perms
	return domain.SessionSnapshot{
		Status:  domain.StatusReadyAuthenticated,
		Session: &domain.AuthSession{User: u, Token: "tok"},
	}
}

func TestEvaluate(t *testing.T) {
	adminView := Requirement{AllowedRoles: []domain.Role{domain.RoleAdmin, domain.RoleSuperAdmin}}
	usersView := Requirement{AllowedRoles: []domain.Role{domain.RoleAdmin, domain.RoleSuperAdmin}, Permission: domain.PermManageUsers}

	cases := []struct {
		name string
		snap domain.SessionSnapshot
		req  Requirement
		want GuardDecision
	}{
		{
			name: "loading never renders or redirects",
			snap: domain.SessionSnapshot{Status: domain.StatusLoading},
			req:  adminView,
			want: GuardDecision{Kind: GuardLoading},
		},
		{
			name: "no session goes to login",
			snap: domain.SessionSnapshot{Status: domain.StatusReadyUnauthenticated},
			req:  adminView,
			want: GuardDecision{Kind: GuardRedirect, Target: "/login"},
		},
		{
			name: "client on admin view goes to own dashboard",
			snap: snapshotFor(domain.RoleClient, nil),
			req:  adminView,
			want: GuardDecision{Kind: GuardRedirect, Target: "/dashboard/client"},
		},
		{
			name: "developer on admin view goes to own dashboard",
			snap: snapshotFor(domain.RoleDeveloper, nil),
			req:  adminView,
			want: GuardDecision{Kind: GuardRedirect, Target: "/dashboard/developer"},
		},
		{
			name: "admin renders admin view",
			snap: snapshotFor(domain.RoleAdmin, nil),
			req:  adminView,
			want: GuardDecision{Kind: GuardRender},
		},
		{
			name: "admin without permission flag is redirected",
			snap: snapshotFor(domain.RoleAdmin, map[string]bool{domain.PermManageUsers: false}),
			req:  usersView,
			want: GuardDecision{Kind: GuardRedirect, Target: "/dashboard/admin"},
		},
		{
			name: "admin with permission flag renders",
			snap: snapshotFor(domain.RoleAdmin, map[string]bool{domain.PermManageUsers: true}),
			req:  usersView,
			want: GuardDecision{Kind: GuardRender},
		},
		{
			name: "super admin passes every permission check",
			snap: snapshotFor(domain.RoleSuperAdmin, nil),
			req:  usersView,
			want: GuardDecision{Kind: GuardRender},
		},
		{
			name: "empty role set admits any signed-in role",
			snap: snapshotFor(domain.RoleDeveloper, nil),
			req:  Requirement{},
			want: GuardDecision{Kind: GuardRender},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Evaluate(tc.snap, tc.req); got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
		})
	}
}
