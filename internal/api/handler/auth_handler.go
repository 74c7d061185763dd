package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/taskflow/portal/internal/core/domain"
	"github.com/taskflow/portal/internal/core/service"
)

// AuthHandler serves the sign-in, OAuth and session endpoints.
type AuthHandler struct {
	portal   *service.Portal
	loadWait time.Duration
}

func NewAuthHandler(portal *service.Portal, loadWait time.Duration) *AuthHandler {
	return &AuthHandler{portal: portal, loadWait: loadWait}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type oauthRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

type inviteRequest struct {
	Role string `json:"role" validate:"required"`
	Code string `json:"code"`
}

type oauthRequest struct {
	Role       string `json:"role"       validate:"required"`
	Credential string `json:"credential" validate:"required"`
}

type loginSurfaceResponse struct {
	Session sessionView           `json:"session"`
	Pending *domain.PendingMarker `json:"pending,omitempty"`
}

type inviteResponse struct {
	Invite domain.InviteVerification `json:"invite"`
}

type logoutResponse struct {
	Redirect string `json:"redirect"`
}

// EnterLogin opens the login surface.
//
// @Summary      Enter the login surface
// @Description  Reports a pending-approval marker if one exists; otherwise clears stale session remnants.
// @Tags         auth
// @Produce      json
// @Success      200  {object}  loginSurfaceResponse
// @Router       /login [get]
func (h *AuthHandler) EnterLogin(c echo.Context) error {
	v, err := ctxVisitor(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	v.Session.Await(ctx, h.loadWait)

	surface := h.portal.EnterLogin(ctx, v)
	return c.JSON(http.StatusOK, loginSurfaceResponse{
		Session: newSessionView(v.Session.Session()),
		Pending: surface.Pending,
	})
}

// Login authenticates with email and password.
//
// @Summary      Password sign-in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  service.Decision
// @Success      202   {object}  service.Decision  "Account pending approval"
// @Failure      401   {object}  service.Decision
// @Failure      403   {object}  service.Decision
// @Failure      409   {object}  map[string]string
// @Failure      422   {object}  service.Decision
// @Failure      503   {object}  service.Decision
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	v, err := ctxVisitor(c)
	if err != nil {
		return err
	}
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}

	d, err := h.portal.LoginWithPassword(c.Request().Context(), v, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(decisionStatus(d), d)
}

// SelectOAuthRole records the role picked on the OAuth surface.
//
// @Summary      Select OAuth role
// @Tags         oauth
// @Accept       json
// @Produce      json
// @Param        body  body      oauthRoleRequest  true  "Role"
// @Success      200   {object}  inviteResponse
// @Failure      400   {object}  map[string]string
// @Router       /auth/oauth/role [post]
func (h *AuthHandler) SelectOAuthRole(c echo.Context) error {
	v, err := ctxVisitor(c)
	if err != nil {
		return err
	}
	var req oauthRoleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	role, _ := domain.ParseRole(req.Role)
	inv, err := h.portal.SelectOAuthRole(v, role)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, inviteResponse{Invite: inv})
}

// VerifyInvite checks an invite code for the selected role.
//
// @Summary      Verify invite code
// @Tags         oauth
// @Accept       json
// @Produce      json
// @Param        body  body      inviteRequest  true  "Role and invite code"
// @Success      200   {object}  inviteResponse
// @Failure      409   {object}  map[string]string
// @Failure      422   {object}  inviteResponse
// @Failure      503   {object}  inviteResponse
// @Router       /auth/oauth/invite [post]
func (h *AuthHandler) VerifyInvite(c echo.Context) error {
	v, err := ctxVisitor(c)
	if err != nil {
		return err
	}
	var req inviteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	role, _ := domain.ParseRole(req.Role)
	inv, err := h.portal.VerifyInvite(c.Request().Context(), v, req.Code, role)
	return inviteResult(c, inv, err)
}

// inviteResult maps a verification result onto the response status.
func inviteResult(c echo.Context, inv domain.InviteVerification, err error) error {
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, inviteResponse{Invite: inv})
	case errors.Is(err, domain.ErrTransport):
		return c.JSON(http.StatusServiceUnavailable, inviteResponse{Invite: inv})
	case errors.Is(err, domain.ErrInviteCodeEmpty), errors.Is(err, domain.ErrInviteRejected):
		return c.JSON(http.StatusUnprocessableEntity, inviteResponse{Invite: inv})
	case errors.Is(err, domain.ErrStaleVerification):
		return c.JSON(http.StatusConflict, inviteResponse{Invite: inv})
	default:
		return err
	}
}

// OAuthLogin exchanges a provider credential for a session.
//
// @Summary      OAuth sign-in
// @Description  The credential is the opaque value returned by the identity provider's widget.
// @Tags         oauth
// @Accept       json
// @Produce      json
// @Param        body  body      oauthRequest  true  "Role and provider credential"
// @Success      200   {object}  service.Decision
// @Success      202   {object}  service.Decision  "Account pending approval"
// @Failure      403   {object}  service.Decision
// @Failure      409   {object}  map[string]string
// @Failure      422   {object}  service.Decision
// @Router       /auth/oauth [post]
func (h *AuthHandler) OAuthLogin(c echo.Context) error {
	v, err := ctxVisitor(c)
	if err != nil {
		return err
	}
	var req oauthRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	source := service.NewOneShotCredential(req.Credential)
	role, _ := domain.ParseRole(req.Role)
	d, err := h.portal.LoginWithOAuth(c.Request().Context(), v, source, role)
	if err != nil && !errors.Is(err, domain.ErrInviteRequired) {
		return err
	}
	return c.JSON(decisionStatus(d), d)
}

// CloseOAuth dismisses the OAuth surface.
//
// @Summary      Close OAuth surface
// @Tags         oauth
// @Success      204
// @Router       /auth/oauth [delete]
func (h *AuthHandler) CloseOAuth(c echo.Context) error {
	v, err := ctxVisitor(c)
	if err != nil {
		return err
	}
	h.portal.CloseOAuth(v)
	return c.NoContent(http.StatusNoContent)
}

// Logout signs the visitor out.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200  {object}  logoutResponse
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	v, err := ctxVisitor(c)
	if err != nil {
		return err
	}
	h.portal.Logout(c.Request().Context(), v)
	return c.JSON(http.StatusOK, logoutResponse{Redirect: domain.DestinationLogin})
}

// Session returns the visitor's session snapshot.
//
// @Summary      Session snapshot
// @Tags         session
// @Produce      json
// @Success      200  {object}  sessionView
// @Router       /api/session [get]
func (h *AuthHandler) Session(c echo.Context) error {
	v, err := ctxVisitor(c)
	if err != nil {
		return err
	}
	snap := v.Session.Await(c.Request().Context(), h.loadWait)
	return c.JSON(http.StatusOK, newSessionView(snap))
}

// Me re-fetches the signed-in user from the credential service. A rejected
// token signs the visitor out.
//
// @Summary      Refresh current user
// @Tags         session
// @Produce      json
// @Success      200  {object}  sessionView
// @Failure      401  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	v, err := ctxVisitor(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	v.Session.Await(ctx, h.loadWait)

	if _, err := h.portal.RefreshUser(ctx, v); err != nil {
		if errors.Is(err, domain.ErrAccessDenied) {
			return domain.ErrUnauthorized
		}
		return err
	}
	return c.JSON(http.StatusOK, newSessionView(v.Session.Session()))
}

type pendingResponse struct {
	View    string                `json:"view"`
	Pending *domain.PendingMarker `json:"pending"`
}

type deniedResponse struct {
	View    string `json:"view"`
	Message string `json:"message"`
}

// PendingApproval renders the pending-approval view. It needs no session.
//
// @Summary      Pending approval view
// @Tags         lifecycle
// @Produce      json
// @Success      200  {object}  pendingResponse
// @Success      302  "No pending request"
// @Router       /pending-approval [get]
func (h *AuthHandler) PendingApproval(c echo.Context) error {
	v, err := ctxVisitor(c)
	if err != nil {
		return err
	}
	marker, err := h.portal.Lifecycle().Pending(c.Request().Context(), v.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return c.Redirect(http.StatusFound, domain.DestinationLogin)
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pendingResponse{View: "pending-approval", Pending: marker})
}

// AccountDisabled renders the access-denied view.
//
// @Summary      Account disabled view
// @Tags         lifecycle
// @Produce      json
// @Success      200  {object}  deniedResponse
// @Router       /account-disabled [get]
func (h *AuthHandler) AccountDisabled(c echo.Context) error {
	return c.JSON(http.StatusOK, deniedResponse{
		View:    "account-disabled",
		Message: "Your account has been deactivated. Contact an administrator to restore access.",
	})
}
