package domain

import "time"

// LifecycleState is the account lifecycle state as observed by the portal.
type LifecycleState string

const (
	StateUnauthenticated LifecycleState = "UNAUTHENTICATED"
	StateAuthenticating  LifecycleState = "AUTHENTICATING"
	StateAuthenticated   LifecycleState = "AUTHENTICATED"
	StatePendingApproval LifecycleState = "PENDING_APPROVAL"
	StateRejected        LifecycleState = "REJECTED"
)

// IssuanceMethod names the upstream flow that produced an outcome.
type IssuanceMethod string

const (
	MethodPassword IssuanceMethod = "password"
	MethodOAuth    IssuanceMethod = "oauth"
	MethodRegister IssuanceMethod = "register"
)

// LifecycleEvent is one journal entry describing a lifecycle transition.
type LifecycleEvent struct {
	ID         string         `json:"id" bson:"_id"`
	VisitorID  string         `json:"visitor_id" bson:"visitor_id"`
	Kind       string         `json:"kind" bson:"kind"`
	Method     IssuanceMethod `json:"method,omitempty" bson:"method,omitempty"`
	Email      string         `json:"email,omitempty" bson:"email,omitempty"`
	Role       Role           `json:"role,omitempty" bson:"role,omitempty"`
	Message    string         `json:"message,omitempty" bson:"message,omitempty"`
	OccurredAt time.Time      `json:"occurred_at" bson:"occurred_at"`
}

// Journal event kinds.
const (
	EventAuthenticated   = "authenticated"
	EventPendingApproval = "pending_approval"
	EventAccessDenied    = "access_denied"
	EventRejected        = "rejected"
	EventLoggedOut       = "logged_out"
)
