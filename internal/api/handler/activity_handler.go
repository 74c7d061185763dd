package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/taskflow/portal/internal/core/domain"
	"github.com/taskflow/portal/internal/core/ports"
)

// ActivityHandler lists the visitor's own lifecycle journal.
type ActivityHandler struct {
	repo ports.LifecycleRepository
}

func NewActivityHandler(repo ports.LifecycleRepository) *ActivityHandler {
	return &ActivityHandler{repo: repo}
}

type activityResponse struct {
	Data []*domain.LifecycleEvent `json:"data"`
}

// List returns the most recent lifecycle events for this browser.
//
// @Summary      Sign-in activity
// @Tags         session
// @Produce      json
// @Param        limit  query     int  false  "Maximum entries (default 50)"
// @Success      200    {object}  activityResponse
// @Router       /api/activity [get]
func (h *ActivityHandler) List(c echo.Context) error {
	v, err := ctxVisitor(c)
	if err != nil {
		return err
	}
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
		}
	}

	events, err := h.repo.ListByVisitor(c.Request().Context(), v.ID, limit)
	if err != nil {
		return err
	}
	if events == nil {
		events = []*domain.LifecycleEvent{}
	}
	return c.JSON(http.StatusOK, activityResponse{Data: events})
}
