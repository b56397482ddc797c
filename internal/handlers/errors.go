package handlers

import (
	"errors"
	"net/http"

	"github.com/campus-skillshare/backend/internal/conversations"
	"github.com/campus-skillshare/backend/internal/identity"
	"github.com/campus-skillshare/backend/internal/middleware"
	"github.com/campus-skillshare/backend/internal/presence"
	"github.com/campus-skillshare/backend/internal/reconciler"
	"github.com/campus-skillshare/backend/internal/repositories"
	"github.com/campus-skillshare/backend/internal/session"
	"github.com/labstack/echo/v4"
)

// httpError maps domain errors onto HTTP statuses.
func httpError(err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, reconciler.ErrNotPending),
		errors.Is(err, reconciler.ErrAlreadyConnected),
		errors.Is(err, reconciler.ErrMirrorMissing),
		errors.Is(err, identity.ErrEmailTaken),
		errors.Is(err, repositories.ErrConflict),
		errors.Is(err, presence.ErrNothingHeld):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, reconciler.ErrSelfRequest),
		errors.Is(err, conversations.ErrEmptyMessage),
		errors.Is(err, conversations.ErrNotParticipant):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, identity.ErrInvalidCredentials),
		errors.Is(err, identity.ErrInvalidToken):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, reconciler.ErrProfileNotLoaded):
		return echo.NewHTTPError(http.StatusPreconditionFailed, err.Error())
	case errors.Is(err, identity.ErrFirebaseUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)).SetInternal(err)
	}
}

func currentSession(c echo.Context) (*session.Session, error) {
	s, ok := middleware.SessionFrom(c)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	return s, nil
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	return c.Validate(req)
}

func ok(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, echo.Map{"success": true, "data": data})
}
