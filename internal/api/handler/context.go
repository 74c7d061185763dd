package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskflow/portal/internal/api/middleware"
	"github.com/taskflow/portal/internal/core/domain"
	"github.com/taskflow/portal/internal/core/service"
)

// ctxVisitor extracts the visitor injected by the Visitor middleware. Its
// absence means the route was registered without the middleware.
func ctxVisitor(c echo.Context) (*service.Visitor, error) {
	v, ok := middleware.VisitorFrom(c)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "visitor not resolved")
	}
	return v, nil
}

// sessionView is the token-free rendering of a session snapshot.
type sessionView struct {
	Status        domain.LoadStatus `json:"status"`
	Authenticated bool              `json:"authenticated"`
	User          *domain.User      `json:"user,omitempty"`
	Destination   string            `json:"destination,omitempty"`
}

func newSessionView(snap domain.SessionSnapshot) sessionView {
	sv := sessionView{Status: snap.Status, Authenticated: snap.Authenticated()}
	if sv.Authenticated {
		sv.User = snap.Session.User
		sv.Destination = snap.Session.User.Role.Destination()
	}
	return sv
}

// decisionStatus maps a lifecycle decision onto an HTTP status code.
func decisionStatus(d service.Decision) int {
	switch d.Outcome {
	case service.OutcomeSuccess:
		return http.StatusOK
	case service.OutcomeNeedsApproval:
		return http.StatusAccepted
	case service.OutcomeAccessDenied:
		return http.StatusForbidden
	case service.OutcomeInvalid:
		return http.StatusUnprocessableEntity
	case service.OutcomeTransport:
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnauthorized
	}
}
