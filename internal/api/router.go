package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/taskflow/portal/docs"
	"github.com/taskflow/portal/internal/api/handler"
	"github.com/taskflow/portal/internal/api/middleware"
	"github.com/taskflow/portal/internal/core/domain"
	"github.com/taskflow/portal/internal/core/ports"
	"github.com/taskflow/portal/internal/core/service"
	"github.com/taskflow/portal/internal/infrastructure/devapi"
)

// DevUpstreamPrefix is where the in-process fake credential API is mounted.
const DevUpstreamPrefix = "/_dev/upstream"

// Dependencies are the wired services the router exposes.
type Dependencies struct {
	Portal        *service.Portal
	Activity      ports.LifecycleRepository
	Checks        map[string]handler.Check
	VisitorSecret []byte
	SecureCookies bool
	LoadWait      time.Duration
	// DevUpstream, when set, is mounted under DevUpstreamPrefix.
	DevUpstream *devapi.Server
	// Registerer receives the HTTP metrics. Defaults to the global registry.
	Registerer prometheus.Registerer
	Log        zerolog.Logger
}

// protectedView is one guarded page and the access it requires.
type protectedView struct {
	path string
	name string
	req  service.Requirement
}

var adminRoles = []domain.Role{domain.RoleAdmin, domain.RoleSuperAdmin}

var protectedViews = []protectedView{
	{path: domain.DestinationClient, name: "client-dashboard", req: service.Requirement{AllowedRoles: []domain.Role{domain.RoleClient}}},
	{path: domain.DestinationDeveloper, name: "developer-dashboard", req: service.Requirement{AllowedRoles: []domain.Role{domain.RoleDeveloper}}},
	{path: domain.DestinationAdmin, name: "admin-dashboard", req: service.Requirement{AllowedRoles: adminRoles}},
	{path: "/admin/users", name: "user-management", req: service.Requirement{AllowedRoles: adminRoles, Permission: domain.PermManageUsers}},
	{path: "/admin/reports", name: "reports", req: service.Requirement{AllowedRoles: adminRoles, Permission: domain.PermViewReports}},
	{path: "/admin/settings", name: "settings", req: service.Requirement{AllowedRoles: adminRoles, Permission: domain.PermManageSettings}},
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)
	e.Validator = handler.NewValidator()

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(deps.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "portal",
		Registerer: deps.Registerer,
		Skipper:    skipOps,
	}))

	// --- Ops (no visitor) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(deps.Checks)
	e.GET("/health", healthHandler.Liveness)           // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	if deps.DevUpstream != nil {
		deps.DevUpstream.Register(e.Group(DevUpstreamPrefix))
	}

	// --- Visitor-scoped routes ---
	app := e.Group("", middleware.Visitor(middleware.VisitorConfig{
		Secret:   deps.VisitorSecret,
		Registry: deps.Portal.Visitors,
		Secure:   deps.SecureCookies,
	}))

	authHandler := handler.NewAuthHandler(deps.Portal, deps.LoadWait)
	app.GET("/login", authHandler.EnterLogin)
	app.POST("/auth/login", authHandler.Login)
	app.POST("/auth/logout", authHandler.Logout)
	app.POST("/auth/oauth/role", authHandler.SelectOAuthRole)
	app.POST("/auth/oauth/invite", authHandler.VerifyInvite)
	app.POST("/auth/oauth", authHandler.OAuthLogin)
	app.DELETE("/auth/oauth", authHandler.CloseOAuth)
	app.GET("/api/session", authHandler.Session)
	app.GET("/api/me", authHandler.Me)
	app.GET(domain.DestinationPendingApproval, authHandler.PendingApproval)
	app.GET(domain.DestinationAccountDisabled, authHandler.AccountDisabled)

	registrationHandler := handler.NewRegistrationHandler(deps.Portal)
	app.GET("/register", registrationHandler.Start)
	app.GET("/register/current", registrationHandler.Current)
	app.POST("/register/next", registrationHandler.Next)
	app.POST("/register/back", registrationHandler.Back)
	app.POST("/register/invite", registrationHandler.VerifyInvite)
	app.DELETE("/register", registrationHandler.Cancel)

	if deps.Activity != nil {
		activityHandler := handler.NewActivityHandler(deps.Activity)
		app.GET("/api/activity", activityHandler.List)
	}

	// --- Guarded views ---
	for _, v := range protectedViews {
		app.GET(v.path, handler.View(v.name), middleware.Guard(v.name, v.req, deps.LoadWait))
	}

	return e
}

func skipOps(c echo.Context) bool {
	p := c.Path()
	return p == "/metrics" || strings.HasPrefix(p, "/health") || strings.HasPrefix(p, "/swagger")
}

// requestLogger feeds echo's request logger into zerolog.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			switch {
			case v.Status >= http.StatusInternalServerError:
				ev = log.Error().Err(v.Error)
			case v.Error != nil:
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
