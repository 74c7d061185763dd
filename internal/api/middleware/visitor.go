package middleware

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/taskflow/portal/internal/core/service"
)

const (
	// VisitorCookie names the cookie carrying the signed visitor token.
	VisitorCookie = "portal_visitor"

	visitorKey    = "visitor"
	visitorMaxAge = 365 * 24 * time.Hour
)

// VisitorConfig configures the Visitor middleware.
type VisitorConfig struct {
	Secret   []byte
	Registry *service.VisitorRegistry
	Secure   bool
}

// Visitor identifies the browser from its signed cookie, issuing a fresh
// visitor ID when the cookie is missing or invalid, and injects the matching
// *service.Visitor into the context.
func Visitor(cfg VisitorConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := visitorID(c, cfg.Secret)
			if !ok {
				id = uuid.NewString()
				signed, err := signVisitor(id, cfg.Secret)
				if err != nil {
					return err
				}
				c.SetCookie(&http.Cookie{
					Name:     VisitorCookie,
					Value:    signed,
					Path:     "/",
					MaxAge:   int(visitorMaxAge.Seconds()),
					HttpOnly: true,
					Secure:   cfg.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			c.Set(visitorKey, cfg.Registry.Get(id))
			return next(c)
		}
	}
}

// VisitorFrom returns the visitor injected by the Visitor middleware.
func VisitorFrom(c echo.Context) (*service.Visitor, bool) {
	v, ok := c.Get(visitorKey).(*service.Visitor)
	return v, ok && v != nil
}

func visitorID(c echo.Context, secret []byte) (string, bool) {
	cookie, err := c.Cookie(VisitorCookie)
	if err != nil || cookie.Value == "" {
		return "", false
	}

	claims := jwt.RegisteredClaims{}
	tkn, err := jwt.ParseWithClaims(cookie.Value, &claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return secret, nil
	})
	if err != nil || !tkn.Valid {
		return "", false
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", false
	}
	return claims.Subject, true
}

func signVisitor(id string, secret []byte) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  id,
		IssuedAt: jwt.NewNumericDate(now),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
