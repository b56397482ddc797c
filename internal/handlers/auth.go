package handlers

import (
	"net/http"
	"strings"

	"github.com/campus-skillshare/backend/internal/identity"
	"github.com/campus-skillshare/backend/internal/models"
	"github.com/labstack/echo/v4"
)

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	provider identity.Provider
	limiter  RateLimiter
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(provider identity.Provider, limiter RateLimiter) *AuthHandler {
	return &AuthHandler{provider: provider, limiter: limiter}
}

// RegisterAuthRoutes registers the unauthenticated sign-in routes
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group) {
	g.POST("/register", h.Register)
	g.POST("/signin", h.SignIn)
	g.POST("/firebase-login", h.FirebaseLogin)
}

// RegisterSessionRoutes registers the routes that need a signed-in caller
func (h *AuthHandler) RegisterSessionRoutes(g *echo.Group) {
	g.GET("/auth/me", h.Me)
	g.POST("/auth/signout", h.SignOut)
	g.PUT("/auth/display-name", h.UpdateDisplayName)
}

// Register creates a local email/password account and signs it in
func (h *AuthHandler) Register(c echo.Context) error {
	if !allowRequest(h.limiter, c, "auth") {
		return echo.NewHTTPError(http.StatusTooManyRequests, "Too many attempts, try again later")
	}
	var req models.RegisterRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	grant, err := h.provider.Register(c.Request().Context(), req.Name, req.Email, req.Password)
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusCreated, grant)
}

// SignIn handles local user authentication with email and password
func (h *AuthHandler) SignIn(c echo.Context) error {
	if !allowRequest(h.limiter, c, "auth") {
		return echo.NewHTTPError(http.StatusTooManyRequests, "Too many attempts, try again later")
	}
	var req models.SignInRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	grant, err := h.provider.SignIn(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, grant)
}

// FirebaseLogin exchanges a Firebase ID token for a local session token
func (h *AuthHandler) FirebaseLogin(c echo.Context) error {
	if !allowRequest(h.limiter, c, "auth") {
		return echo.NewHTTPError(http.StatusTooManyRequests, "Too many attempts, try again later")
	}
	var req models.FirebaseLoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	grant, err := h.provider.FirebaseLogin(c.Request().Context(), req.IDToken)
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, grant)
}

// Me returns the signed-in identity
func (h *AuthHandler) Me(c echo.Context) error {
	s, err := currentSession(c)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, s.Identity())
}

// SignOut revokes the caller's token and ends their session
func (h *AuthHandler) SignOut(c echo.Context) error {
	s, err := currentSession(c)
	if err != nil {
		return err
	}
	if err := h.provider.SignOut(c.Request().Context(), s.Identity()); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// UpdateDisplayName renames the caller
func (h *AuthHandler) UpdateDisplayName(c echo.Context) error {
	s, err := currentSession(c)
	if err != nil {
		return err
	}
	var req models.DisplayNameRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	if err := h.provider.UpdateDisplayName(ctx, s.Identity(), req.Name); err != nil {
		return httpError(err)
	}
	s.Rename(strings.TrimSpace(req.Name))
	profile, err := s.Refresh(ctx)
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, profile)
}
