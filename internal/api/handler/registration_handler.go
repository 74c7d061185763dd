package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskflow/portal/internal/core/domain"
	"github.com/taskflow/portal/internal/core/service"
)

// RegistrationHandler drives the multi-step registration wizard.
type RegistrationHandler struct {
	portal *service.Portal
}

func NewRegistrationHandler(portal *service.Portal) *RegistrationHandler {
	return &RegistrationHandler{portal: portal}
}

type wizardResponse struct {
	Wizard   service.WizardView `json:"wizard"`
	Decision *service.Decision  `json:"decision,omitempty"`
}

// Start opens a fresh wizard. Any previous answers are discarded.
//
// @Summary      Start registration
// @Tags         registration
// @Produce      json
// @Success      200  {object}  wizardResponse
// @Router       /register [get]
func (h *RegistrationHandler) Start(c echo.Context) error {
	v, err := ctxVisitor(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, wizardResponse{Wizard: h.portal.StartRegistration(v)})
}

// Current returns the wizard without changing it.
//
// @Summary      Current registration step
// @Tags         registration
// @Produce      json
// @Success      200  {object}  wizardResponse
// @Router       /register/current [get]
func (h *RegistrationHandler) Current(c echo.Context) error {
	v, err := ctxVisitor(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, wizardResponse{Wizard: v.Wizard.View()})
}

// VerifyInvite checks an invite code for the role chosen in the wizard.
// The verification is held apart from the OAuth surface.
//
// @Summary      Verify registration invite code
// @Tags         registration
// @Accept       json
// @Produce      json
// @Param        body  body      inviteRequest  true  "Role and invite code"
// @Success      200   {object}  inviteResponse
// @Failure      409   {object}  map[string]string
// @Failure      422   {object}  inviteResponse
// @Failure      503   {object}  inviteResponse
// @Router       /register/invite [post]
func (h *RegistrationHandler) VerifyInvite(c echo.Context) error {
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
	inv, err := h.portal.VerifyRegistrationInvite(c.Request().Context(), v, req.Code, role)
	return inviteResult(c, inv, err)
}

// Next validates the current step and advances. On the last step the
// registration is submitted and the lifecycle decision is returned.
//
// @Summary      Advance registration
// @Tags         registration
// @Accept       json
// @Produce      json
// @Param        body  body      service.WizardInput  true  "Fields of the current step"
// @Success      200   {object}  wizardResponse
// @Success      202   {object}  wizardResponse  "Account pending approval"
// @Failure      409   {object}  map[string]string
// @Failure      422   {object}  wizardResponse
// @Router       /register/next [post]
func (h *RegistrationHandler) Next(c echo.Context) error {
	v, err := ctxVisitor(c)
	if err != nil {
		return err
	}
	var in service.WizardInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}

	view, d, err := h.portal.AdvanceRegistration(c.Request().Context(), v, in)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return c.JSON(http.StatusUnprocessableEntity, wizardResponse{Wizard: view})
		}
		return err
	}
	if d == nil {
		return c.JSON(http.StatusOK, wizardResponse{Wizard: view})
	}
	return c.JSON(decisionStatus(*d), wizardResponse{Wizard: view, Decision: d})
}

// Back returns to the previous step keeping entered data.
//
// @Summary      Previous registration step
// @Tags         registration
// @Produce      json
// @Success      200  {object}  wizardResponse
// @Router       /register/back [post]
func (h *RegistrationHandler) Back(c echo.Context) error {
	v, err := ctxVisitor(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, wizardResponse{Wizard: v.Wizard.Back()})
}

// Cancel abandons the wizard.
//
// @Summary      Cancel registration
// @Tags         registration
// @Success      204
// @Router       /register [delete]
func (h *RegistrationHandler) Cancel(c echo.Context) error {
	v, err := ctxVisitor(c)
	if err != nil {
		return err
	}
	h.portal.StartRegistration(v)
	return c.NoContent(http.StatusNoContent)
}
