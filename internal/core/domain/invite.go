package domain

// InviteState is the state of the invite-gate state machine.
type InviteState string

const (
	InviteUnverified InviteState = "UNVERIFIED"
	InviteVerifying  InviteState = "VERIFYING"
	InviteVerified   InviteState = "VERIFIED"
)

// InviteVerification is the transient result of an invite check, scoped to
// exactly one (code, role) pair.
type InviteVerification struct {
	Code     string      `json:"-"`
	Role     Role        `json:"role"`
	State    InviteState `json:"state"`
	Verified bool        `json:"verified"`
	Error    string      `json:"error,omitempty"`
}
