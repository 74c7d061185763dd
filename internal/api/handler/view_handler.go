package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskflow/portal/internal/api/middleware"
	"github.com/taskflow/portal/internal/core/domain"
)

type viewResponse struct {
	View string       `json:"view"`
	User *domain.User `json:"user"`
}

// View returns a handler rendering the named protected view. It must sit
// behind middleware.Guard.
//
// @Summary      Guarded view
// @Description  While the stored session is still loading the view answers {"view":"loading"}. Unauthenticated visitors are redirected to /login; a role or permission mismatch redirects to the visitor's own destination.
// @Tags         views
// @Produce      json
// @Success      200  {object}  viewResponse
// @Success      302
// @Router       /dashboard/client [get]
// @Router       /dashboard/developer [get]
// @Router       /dashboard/admin [get]
// @Router       /admin/users [get]
// @Router       /admin/reports [get]
// @Router       /admin/settings [get]
func View(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		snap, ok := middleware.SnapshotFrom(c)
		if !ok || !snap.Authenticated() {
			return echo.NewHTTPError(http.StatusInternalServerError, "view rendered without guard")
		}
		return c.JSON(http.StatusOK, viewResponse{View: name, User: snap.Session.User})
	}
}
