package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/campus-skillshare/backend/internal/identity"
	"github.com/campus-skillshare/backend/internal/session"
	"github.com/labstack/echo/v4"
)

// Context keys set by SessionAuth.
const (
	IdentityKey = "identity"
	SessionKey  = "session"
)

// SessionAuth checks the bearer token and attaches the caller's identity and live
// session to the context.
func SessionAuth(provider identity.Provider, sessions *session.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, err := bearerToken(c.Request())
			if err != nil {
				return err
			}

			id, err := provider.Verify(tokenString)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
			}

			s, err := sessions.Open(id)
			switch {
			case errors.Is(err, session.ErrEnded), errors.Is(err, session.ErrExpired):
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
			case err != nil:
				return echo.NewHTTPError(http.StatusServiceUnavailable, "Session unavailable")
			}

			c.Set(IdentityKey, id)
			c.Set(SessionKey, s)
			return next(c)
		}
	}
}

// bearerToken reads the token from the Authorization header. Browsers cannot set
// headers on an EventSource, so the access_token query parameter is accepted too.
func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if token := r.URL.Query().Get("access_token"); token != "" {
			return token, nil
		}
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization header")
	}

	// Expecting "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization header format")
	}
	return parts[1], nil
}

// IdentityFrom returns the identity SessionAuth attached.
func IdentityFrom(c echo.Context) (identity.Identity, bool) {
	id, ok := c.Get(IdentityKey).(identity.Identity)
	return id, ok
}

// SessionFrom returns the session SessionAuth attached.
func SessionFrom(c echo.Context) (*session.Session, bool) {
	s, ok := c.Get(SessionKey).(*session.Session)
	return s, ok && s != nil
}
