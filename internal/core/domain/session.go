package domain

import "time"

// AuthSession pairs a user with the opaque bearer token issued for it.
type AuthSession struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

// Complete reports whether both halves of the session are present.
func (s *AuthSession) Complete() bool {
	return s != nil && s.User != nil && s.Token != ""
}

// LoadStatus tracks the one-time startup read of the persisted session.
type LoadStatus string

const (
	StatusLoading              LoadStatus = "LOADING"
	StatusReadyAuthenticated   LoadStatus = "READY_AUTHENTICATED"
	StatusReadyUnauthenticated LoadStatus = "READY_UNAUTHENTICATED"
)

// SessionSnapshot is an immutable read of the session store.
type SessionSnapshot struct {
	Status  LoadStatus
	Session *AuthSession
}

// Authenticated reports whether the snapshot carries a usable session.
func (s SessionSnapshot) Authenticated() bool {
	return s.Status == StatusReadyAuthenticated && s.Session.Complete()
}

// PendingMarker records a registration or sign-in that was accepted but is
// waiting for administrative approval. It never doubles as a session.
type PendingMarker struct {
	Email       string    `json:"email"`
	Role        Role      `json:"role"`
	RequestedAt time.Time `json:"requestedAt"`
	User        *User     `json:"user,omitempty"`
}
