package domain

import "strings"

// Role is the closed set of portal roles. No ordering is implied between
// DEVELOPER and ADMIN; SUPER_ADMIN passes every permission check.
type Role string

const (
	RoleClient     Role = "CLIENT"
	RoleDeveloper  Role = "DEVELOPER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// Destinations reachable from role routing.
const (
	DestinationLogin           = "/login"
	DestinationLanding         = "/"
	DestinationClient          = "/dashboard/client"
	DestinationDeveloper       = "/dashboard/developer"
	DestinationAdmin           = "/dashboard/admin"
	DestinationPendingApproval = "/pending-approval"
	DestinationAccountDisabled = "/account-disabled"
)

// ParseRole normalises a wire role string. The second return value is false
// for anything outside the closed set.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.IsValid()
}

// IsValid reports whether r is one of the four known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleClient, RoleDeveloper, RoleAdmin, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// RequiresInvite reports whether issuing r must be gated behind a verified
// invite code. Every role except CLIENT is gated.
func (r Role) RequiresInvite() bool {
	return r != RoleClient
}

// Destination is the default landing route for a role. Unrecognised roles get
// the generic landing page.
func (r Role) Destination() string {
	switch r {
	case RoleClient:
		return DestinationClient
	case RoleDeveloper:
		return DestinationDeveloper
	case RoleAdmin, RoleSuperAdmin:
		return DestinationAdmin
	default:
		return DestinationLanding
	}
}

func (r Role) String() string { return string(r) }
