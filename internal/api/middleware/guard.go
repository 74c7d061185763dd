package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/taskflow/portal/internal/api/metrics"
	"github.com/taskflow/portal/internal/core/domain"
	"github.com/taskflow/portal/internal/core/service"
)

const snapshotKey = "session"

// loadingRetry is the Refresh hint sent with the loading placeholder.
const loadingRetry = 1

// Guard protects a view. It waits up to loadWait for the visitor's session to
// load, then renders, redirects or serves the loading placeholder. Protected
// content is never served while the session is still loading.
func Guard(view string, req service.Requirement, loadWait time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			v, ok := VisitorFrom(c)
			if !ok {
				return echo.NewHTTPError(http.StatusInternalServerError, "visitor not resolved")
			}

			snap := v.Session.Await(c.Request().Context(), loadWait)
			d := service.Evaluate(snap, req)
			metrics.GuardDecisionsTotal.WithLabelValues(view, string(d.Kind)).Inc()

			switch d.Kind {
			case service.GuardLoading:
				c.Response().Header().Set("Refresh", strconv.Itoa(loadingRetry))
				c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
				return c.JSON(http.StatusOK, map[string]string{"view": "loading"})
			case service.GuardRedirect:
				return c.Redirect(http.StatusFound, d.Target)
			}

			c.Set(snapshotKey, snap)
			return next(c)
		}
	}
}

// SnapshotFrom returns the session snapshot the Guard rendered with.
func SnapshotFrom(c echo.Context) (domain.SessionSnapshot, bool) {
	snap, ok := c.Get(snapshotKey).(domain.SessionSnapshot)
	return snap, ok
}
