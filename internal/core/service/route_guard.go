package service

import "github.com/taskflow/portal/internal/core/domain"

// GuardKind is the outcome of a route guard check.
type GuardKind string

const (
	GuardLoading  GuardKind = "loading"
	GuardRender   GuardKind = "render"
	GuardRedirect GuardKind = "redirect"
)

// Requirement is what a protected view declares. An empty AllowedRoles set
// admits every signed-in role; an empty Permission requires no flag.
type Requirement struct {
	AllowedRoles []domain.Role
	Permission   string
}

// Admits reports whether role is in the allowed set.
func (r Requirement) Admits(role domain.Role) bool {
	if len(r.AllowedRoles) == 0 {
		return true
	}
	for _, allowed := range r.AllowedRoles {
		if allowed == role {
			return true
		}
	}
	return false
}

// GuardDecision tells the caller whether to render, redirect or wait.
type GuardDecision struct {
	Kind   GuardKind
	Target string
}

// Evaluate decides access to a view. It is a pure function of the session
// snapshot and the view's requirement and is re-run on every navigation.
func Evaluate(snap domain.SessionSnapshot, req Requirement) GuardDecision {
	if snap.Status == domain.StatusLoading {
		return GuardDecision{Kind: GuardLoading}
	}
	if !snap.Authenticated() {
		return GuardDecision{Kind: GuardRedirect, Target: domain.DestinationLogin}
	}

	user := snap.Session.User
	if !req.Admits(user.Role) {
		return GuardDecision{Kind: GuardRedirect, Target: user.Role.Destination()}
	}
	if req.Permission != "" && !user.HasPermission(req.Permission) {
		return GuardDecision{Kind: GuardRedirect, Target: user.Role.Destination()}
	}
	return GuardDecision{Kind: GuardRender}
}
