package domain

// Permission flags carried on the user record.
const (
	PermManageUsers    = "canManageUsers"
	PermManageProjects = "canManageProjects"
	PermViewReports    = "canViewReports"
	PermManageSettings = "canManageSettings"
)

// User is the identity record issued by the credential service. The portal
// never mutates it except by re-fetching.
type User struct {
	ID          string          `json:"id"`
	Email       string          `json:"email"`
	FirstName   string          `json:"firstName"`
	LastName    *string         `json:"lastName"`
	Role        Role            `json:"role"`
	Permissions map[string]bool `json:"permissions,omitempty"`
}

// HasPermission reports whether the named flag is set. SUPER_ADMIN always has it.
func (u *User) HasPermission(name string) bool {
	if u == nil {
		return false
	}
	if u.Role == RoleSuperAdmin {
		return true
	}
	return u.Permissions[name]
}

// Clone returns a deep copy so callers never share the permission map.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.LastName != nil {
		ln := *u.LastName
		c.LastName = &ln
	}
	if u.Permissions != nil {
		c.Permissions = make(map[string]bool, len(u.Permissions))
		for k, v := range u.Permissions {
			c.Permissions[k] = v
		}
	}
	return &c
}
