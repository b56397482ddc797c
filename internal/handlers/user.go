package handlers

import (
	"net/http"

	"github.com/campus-skillshare/backend/internal/matching"
	"github.com/campus-skillshare/backend/internal/models"
	"github.com/labstack/echo/v4"
)

// UserHandler handles HTTP requests related to profiles and discovery
type UserHandler struct{}

// NewUserHandler creates a new UserHandler
func NewUserHandler() *UserHandler {
	return &UserHandler{}
}

// RegisterProfileRoutes registers user profile-related routes
func (h *UserHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/profile", h.GetProfile)    // Get own profile
	g.PUT("/profile", h.UpdateProfile) // Update own profile
	g.GET("/users", h.Explore)         // Everyone else, filtered
	g.GET("/users/:id", h.GetUser)     // Get other user's profile by ID
	g.GET("/suggestions", h.Suggestions)
}

// GetProfile retrieves the authenticated user's profile
func (h *UserHandler) GetProfile(c echo.Context) error {
	s, err := currentSession(c)
	if err != nil {
		return err
	}
	profile, err := s.Profile(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, profile)
}

// UpdateProfile merges the profile form into the caller's profile
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	s, err := currentSession(c)
	if err != nil {
		return err
	}
	var req models.UpdateProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	profile, err := s.UpdateProfile(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, profile)
}

func (h *UserHandler) GetUser(c echo.Context) error {
	s, err := currentSession(c)
	if err != nil {
		return err
	}
	user, err := s.User(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, user.Snapshot())
}

// Explore lists other profiles. university, teaches and learns narrow the list;
// an empty value or "all" matches everyone.
func (h *UserHandler) Explore(c echo.Context) error {
	s, err := currentSession(c)
	if err != nil {
		return err
	}
	filter := matching.Filter{
		University: c.QueryParam("university"),
		Teaches:    c.QueryParam("teaches"),
		Learns:     c.QueryParam("learns"),
	}

	profiles, err := s.Explore(c.Request().Context(), filter)
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, echo.Map{"users": profiles})
}

// Suggestions returns mutual-interest matches, best first
func (h *UserHandler) Suggestions(c echo.Context) error {
	s, err := currentSession(c)
	if err != nil {
		return err
	}
	suggestions, err := s.Suggestions(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, echo.Map{"suggestions": suggestions})
}
