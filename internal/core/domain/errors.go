package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrTransport means the credential service could not be reached.
	ErrTransport = errors.New("cannot reach server")
	// ErrNeedsApproval marks credentials that were accepted but await approval.
	ErrNeedsApproval = errors.New("account pending approval")
	// ErrAccessDenied marks a deactivated or otherwise refused account.
	ErrAccessDenied = errors.New("access denied")
	// ErrUnauthorized means a protected call was refused for the session's
	// token; the session must be cleared.
	ErrUnauthorized = errors.New("session is no longer valid")
	// ErrInviteRequired is returned when an elevated role is requested
	// without a verified invite for exactly that role.
	ErrInviteRequired = errors.New("a verified invite code is required for this role")
	// ErrInviteCodeEmpty is the local rejection of an empty invite code.
	ErrInviteCodeEmpty = errors.New("invite code is required")
	// ErrInviteRejected wraps the server-supplied reason for a refused code.
	ErrInviteRejected = errors.New("invite code rejected")
	// ErrStaleVerification is returned when a verification result arrives
	// after the role or code it was issued for has changed.
	ErrStaleVerification = errors.New("invite verification superseded")
	// ErrRequestInFlight rejects a duplicate submission of an in-flight action.
	ErrRequestInFlight = errors.New("request already in progress")
	// ErrCredentialConsumed is returned by a one-shot provider credential
	// source asked for a second credential.
	ErrCredentialConsumed = errors.New("provider credential already consumed")
	// ErrInvalidRole is returned for roles outside the closed set.
	ErrInvalidRole = errors.New("invalid role")
	// ErrNotFound is returned by stores when a slot is empty.
	ErrNotFound = errors.New("not found")
)

// UpstreamError is a rejection from the credential service. Message is shown
// verbatim to the user. Cause, when set, classifies the rejection (for
// example ErrAccessDenied).
type UpstreamError struct {
	Status  int
	Message string
	Cause   error
}

func (e *UpstreamError) Unwrap() error { return e.Cause }

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("credential service rejected the request (%d)", e.Status)
	}
	return e.Message
}

// ApprovalRequiredError carries the partial user returned with a
// "needs approval" response.
type ApprovalRequiredError struct {
	Message string
	User    *User
}

func (e *ApprovalRequiredError) Error() string {
	if e.Message == "" {
		return ErrNeedsApproval.Error()
	}
	return e.Message
}

func (e *ApprovalRequiredError) Unwrap() error { return ErrNeedsApproval }

// ValidationError aggregates field-scoped local validation failures.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, e.Fields[k])
	}
	return strings.Join(msgs, "; ")
}

// NewValidationError builds a ValidationError with a single field.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}
