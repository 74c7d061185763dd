// Package devapi is an in-process stand-in for the remote credential API. It
// speaks the same wire contract as the real service so the portal can be run
// and tested without it. It is not a product surface.
package devapi

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskflow/portal/internal/core/domain"
)

type accountStatus string

const (
	statusActive   accountStatus = "active"
	statusPending  accountStatus = "pending"
	statusDisabled accountStatus = "disabled"
)

type account struct {
	user         domain.User
	passwordHash []byte
	status       accountStatus
}

// Server is the fake credential API.
type Server struct {
	secret   []byte
	tokenTTL time.Duration
	cost     int

	mu       sync.RWMutex
	accounts map[string]*account // by lower-cased email
	invites  map[string]domain.Role
}

// Option configures the Server.
type Option func(*Server)

// WithBcryptCost overrides the password hashing cost (tests use MinCost).
func WithBcryptCost(cost int) Option {
	return func(s *Server) { s.cost = cost }
}

// New creates a Server signing tokens with secret.
func New(secret string, opts ...Option) *Server {
	s := &Server{
		secret:   []byte(secret),
		tokenTTL: 24 * time.Hour,
		cost:     bcrypt.DefaultCost,
		accounts: make(map[string]*account),
		invites:  make(map[string]domain.Role),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// AddInvite registers a one-time invite code unlocking role.
func (s *Server) AddInvite(code string, role domain.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invites[code] = role
}

// AddUser seeds an active account.
func (s *Server) AddUser(user domain.User, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return err
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[strings.ToLower(user.Email)] = &account{user: user, passwordHash: hash, status: statusActive}
	return nil
}

// Approve activates a pending account.
func (s *Server) Approve(email string) bool { return s.setStatus(email, statusActive) }

// Deactivate disables an account.
func (s *Server) Deactivate(email string) bool { return s.setStatus(email, statusDisabled) }

// SetRole changes an account's role, as an administrator would upstream.
func (s *Server) SetRole(email string, role domain.Role) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[strings.ToLower(email)]
	if ok {
		a.user.Role = role
	}
	return ok
}

func (s *Server) setStatus(email string, st accountStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[strings.ToLower(email)]
	if ok {
		a.status = st
	}
	return ok
}

// Register mounts the API routes on g.
func (s *Server) Register(g *echo.Group) {
	g.POST("/auth/login", s.login)
	g.POST("/auth/oauth", s.oauth)
	g.POST("/auth/invite/verify", s.verifyInvite)
	g.POST("/auth/register", s.register)
	g.GET("/auth/me", s.me)
	g.POST("/auth/approve", s.approve)
}

// Handler returns a standalone http.Handler serving the API at its root.
func (s *Server) Handler() http.Handler {
	e := echo.New()
	e.HideBanner = true
	s.Register(e.Group(""))
	return e
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type oauthRequest struct {
	ProviderCredential string `json:"providerCredential"`
	Role               string `json:"role"`
	InviteCode         string `json:"inviteCode"`
}

type registerRequest struct {
	Role       string `json:"role"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	InviteCode string `json:"inviteCode"`
}

func (s *Server) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}

	s.mu.RLock()
	a, ok := s.accounts[strings.ToLower(req.Email)]
	s.mu.RUnlock()
	if !ok || bcrypt.CompareHashAndPassword(a.passwordHash, []byte(req.Password)) != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid email or password"})
	}
	return s.respondFor(c, a)
}

// oauth treats the provider credential as the verified email address.
func (s *Server) oauth(c echo.Context) error {
	var req oauthRequest
	if err := c.Bind(&req); err != nil || req.ProviderCredential == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}
	role, ok := domain.ParseRole(req.Role)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid role"})
	}

	email := strings.ToLower(req.ProviderCredential)
	s.mu.Lock()
	a, exists := s.accounts[email]
	if !exists {
		if role.RequiresInvite() && !s.consumeInvite(req.InviteCode, role) {
			s.mu.Unlock()
			return c.JSON(http.StatusForbidden, echo.Map{"error": "Invalid or expired invite code"})
		}
		a = &account{
			user:   domain.User{ID: uuid.NewString(), Email: email, FirstName: strings.SplitN(email, "@", 2)[0], Role: role},
			status: initialStatus(role),
		}
		s.accounts[email] = a
	}
	s.mu.Unlock()

	return s.respondFor(c, a)
}

func (s *Server) verifyInvite(c echo.Context) error {
	var req struct {
		Code string `json:"code"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}
	s.mu.RLock()
	_, ok := s.invites[req.Code]
	s.mu.RUnlock()
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid or expired invite code"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

func (s *Server) register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}
	role, ok := domain.ParseRole(req.Role)
	if !ok || req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid registration"})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	email := strings.ToLower(req.Email)
	s.mu.Lock()
	if _, exists := s.accounts[email]; exists {
		s.mu.Unlock()
		return c.JSON(http.StatusConflict, echo.Map{"error": "An account with this email already exists"})
	}
	if role.RequiresInvite() && !s.consumeInvite(req.InviteCode, role) {
		s.mu.Unlock()
		return c.JSON(http.StatusForbidden, echo.Map{"error": "Invalid or expired invite code"})
	}
	var lastName *string
	if req.LastName != "" {
		lastName = &req.LastName
	}
	a := &account{
		user:         domain.User{ID: uuid.NewString(), Email: email, FirstName: req.FirstName, LastName: lastName, Role: role},
		passwordHash: hash,
		status:       initialStatus(role),
	}
	s.accounts[email] = a
	s.mu.Unlock()

	return s.respondFor(c, a)
}

func (s *Server) me(c echo.Context) error {
	email, err := s.parseToken(c.Request().Header.Get("Authorization"))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
	}
	s.mu.RLock()
	a, ok := s.accounts[email]
	s.mu.RUnlock()
	if !ok || a.status != statusActive {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
	}
	return c.JSON(http.StatusOK, echo.Map{"user": a.user})
}

func (s *Server) approve(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil || !s.Approve(req.Email) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// respondFor renders the success, pending or denied envelope for a.
func (s *Server) respondFor(c echo.Context, a *account) error {
	s.mu.RLock()
	user, status := a.user, a.status
	s.mu.RUnlock()

	switch status {
	case statusPending:
		return c.JSON(http.StatusForbidden, echo.Map{
			"error":         "Your account is pending approval",
			"needsApproval": true,
			"user":          user,
		})
	case statusDisabled:
		return c.JSON(http.StatusForbidden, echo.Map{"error": "Your account has been deactivated"})
	}

	token, err := s.signToken(user)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "token": token, "user": user})
}

// consumeInvite must be called with s.mu held.
func (s *Server) consumeInvite(code string, role domain.Role) bool {
	if r, ok := s.invites[code]; ok && r == role {
		delete(s.invites, code)
		return true
	}
	return false
}

func initialStatus(role domain.Role) accountStatus {
	switch role {
	case domain.RoleDeveloper, domain.RoleAdmin:
		return statusPending
	default:
		return statusActive
	}
}

func (s *Server) signToken(user domain.User) (string, error) {
	claims := jwt.MapClaims{
		"sub":  user.Email,
		"role": string(user.Role),
		"exp":  time.Now().Add(s.tokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) parseToken(header string) (string, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", errors.New("missing bearer token")
	}
	claims := jwt.MapClaims{}
	tkn, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil || !tkn.Valid {
		return "", errors.New("invalid token")
	}
	sub, _ := claims["sub"].(string)
	return sub, nil
}
