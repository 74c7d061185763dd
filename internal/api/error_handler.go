package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/taskflow/portal/internal/core/domain"
	"github.com/taskflow/portal/internal/core/service"
)

// errorBody is the JSON shape of every error the API returns.
type errorBody struct {
	Error    string            `json:"error"`
	Fields   map[string]string `json:"fields,omitempty"`
	Redirect string            `json:"redirect,omitempty"`
}

// sentinelStatus maps a domain sentinel to its response. Order matters: the
// first match wins.
var sentinelStatus = []struct {
	err  error
	code int
	body errorBody
}{
	{domain.ErrRequestInFlight, http.StatusConflict, errorBody{Error: "request already in progress"}},
	{domain.ErrInvalidRole, http.StatusBadRequest, errorBody{Error: "invalid role"}},
	{domain.ErrInviteRequired, http.StatusUnprocessableEntity, errorBody{Error: service.ErrMessageInviteReq}},
	{domain.ErrUnauthorized, http.StatusUnauthorized, errorBody{Error: "Your session has expired, please sign in again", Redirect: domain.DestinationLogin}},
	{domain.ErrTransport, http.StatusServiceUnavailable, errorBody{Error: service.ErrMessageTransport}},
	{domain.ErrNotFound, http.StatusNotFound, errorBody{Error: "not found"}},
}

// NewHTTPErrorHandler renders handler errors as errorBody. Unknown errors are
// logged and reported as a bare 500.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code, body := classify(err)
		if code == http.StatusInternalServerError {
			log.Error().
				Err(err).
				Str("method", c.Request().Method).
				Str("path", c.Path()).
				Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Msg("unhandled error")
		}
		_ = c.JSON(code, body)
	}
}

func classify(err error) (int, errorBody) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, errorBody{Error: fmt.Sprint(he.Message)}
	}

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return http.StatusUnprocessableEntity, errorBody{Error: verr.Error(), Fields: verr.Fields}
	}

	for _, s := range sentinelStatus {
		if errors.Is(err, s.err) {
			return s.code, s.body
		}
	}

	var ue *domain.UpstreamError
	if errors.As(err, &ue) {
		return http.StatusBadGateway, errorBody{Error: ue.Message}
	}
	return http.StatusInternalServerError, errorBody{Error: "internal server error"}
}
