package handlers

import (
	"net/http"

	"github.com/campus-skillshare/backend/internal/models"
	"github.com/labstack/echo/v4"
)

// RelationshipHandler handles invitations, requests and connections
type RelationshipHandler struct{}

// NewRelationshipHandler creates a new RelationshipHandler
func NewRelationshipHandler() *RelationshipHandler {
	return &RelationshipHandler{}
}

// RegisterRelationshipRoutes registers relationship routes
func (h *RelationshipHandler) RegisterRelationshipRoutes(g *echo.Group) {
	g.GET("/invitations", h.GetInvitations)
	g.POST("/invitations/:uid/accept", h.AcceptInvitation)
	g.POST("/invitations/:uid/deny", h.DenyInvitation)

	g.GET("/requests", h.GetRequests)
	g.POST("/requests", h.SendRequest)
	g.POST("/requests/:uid/cancel", h.RequestCancel)
	g.GET("/requests/cancel", h.GetPendingCancel)
	g.POST("/requests/cancel/confirm", h.ConfirmCancel)
	g.POST("/requests/cancel/dismiss", h.DismissCancel)

	g.GET("/connections", h.GetConnections)
}

// GetInvitations returns pending invitations addressed to the caller
func (h *RelationshipHandler) GetInvitations(c echo.Context) error {
	s, err := currentSession(c)
	if err != nil {
		return err
	}
	invitations, err := s.Invitations(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, echo.Map{"invitations": invitations})
}

func (h *RelationshipHandler) AcceptInvitation(c echo.Context) error {
	s, err := currentSession(c)
	if err != nil {
		return err
	}
	inv, err := s.Accept(c.Request().Context(), c.Param("uid"))
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, inv)
}

func (h *RelationshipHandler) DenyInvitation(c echo.Context) error {
	s, err := currentSession(c)
	if err != nil {
		return err
	}
	inv, err := s.Deny(c.Request().Context(), c.Param("uid"))
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, inv)
}

// GetRequests returns the caller's pending outgoing requests
func (h *RelationshipHandler) GetRequests(c echo.Context) error {
	s, err := currentSession(c)
	if err != nil {
		return err
	}
	requests, err := s.Requests(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, echo.Map{"requests": requests})
}

// SendRequest asks another user to connect
func (h *RelationshipHandler) SendRequest(c echo.Context) error {
	s, err := currentSession(c)
	if err != nil {
		return err
	}
	var req models.SendRequestRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	target, err := s.SendRequest(c.Request().Context(), req.TargetUID)
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusCreated, target)
}

// RequestCancel opens the confirmation prompt; nothing is deleted yet
func (h *RelationshipHandler) RequestCancel(c echo.Context) error {
	s, err := currentSession(c)
	if err != nil {
		return err
	}
	held, err := s.RequestCancel(c.Request().Context(), c.Param("uid"))
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusAccepted, echo.Map{"awaitingConfirmation": true, "request": held})
}

func (h *RelationshipHandler) GetPendingCancel(c echo.Context) error {
	s, err := currentSession(c)
	if err != nil {
		return err
	}
	held, found := s.PendingCancel()
	if !found {
		return ok(c, http.StatusOK, echo.Map{"awaitingConfirmation": false})
	}
	return ok(c, http.StatusOK, echo.Map{"awaitingConfirmation": true, "request": held})
}

// ConfirmCancel deletes the held request and its mirror
func (h *RelationshipHandler) ConfirmCancel(c echo.Context) error {
	s, err := currentSession(c)
	if err != nil {
		return err
	}
	cancelled, err := s.ConfirmCancel(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, cancelled)
}

func (h *RelationshipHandler) DismissCancel(c echo.Context) error {
	s, err := currentSession(c)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"dismissed": s.DismissCancel()})
}

func (h *RelationshipHandler) GetConnections(c echo.Context) error {
	s, err := currentSession(c)
	if err != nil {
		return err
	}
	connections, err := s.Connections(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, echo.Map{"connections": connections})
}
