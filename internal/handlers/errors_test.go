package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/campus-skillshare/backend/internal/conversations"
	"github.com/campus-skillshare/backend/internal/identity"
	"github.com/campus-skillshare/backend/internal/presence"
	"github.com/campus-skillshare/backend/internal/reconciler"
	"github.com/campus-skillshare/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("invitation from a: %w", repositories.ErrNotFound), http.StatusNotFound},
		{reconciler.ErrNotPending, http.StatusConflict},
		{reconciler.ErrAlreadyConnected, http.StatusConflict},
		{reconciler.ErrMirrorMissing, http.StatusConflict},
		{identity.ErrEmailTaken, http.StatusConflict},
		{presence.ErrNothingHeld, http.StatusConflict},
		{reconciler.ErrSelfRequest, http.StatusBadRequest},
		{conversations.ErrEmptyMessage, http.StatusBadRequest},
		{identity.ErrInvalidCredentials, http.StatusUnauthorized},
		{identity.ErrInvalidToken, http.StatusUnauthorized},
		{fmt.Errorf("%w: no profile", reconciler.ErrProfileNotLoaded), http.StatusPreconditionFailed},
		{identity.ErrFirebaseUnavailable, http.StatusServiceUnavailable},
		{errors.New("disk on fire"), http.StatusInternalServerError},
		{echo.NewHTTPError(http.StatusTeapot, "short and stout"), http.StatusTeapot},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			var he *echo.HTTPError
			require.ErrorAs(t, httpError(tc.err), &he)
			assert.Equal(t, tc.status, he.Code)
		})
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	var he *echo.HTTPError
	require.ErrorAs(t, httpError(errors.New("pq: password authentication failed")), &he)
	assert.Equal(t, http.StatusText(http.StatusInternalServerError), he.Message)
	assert.Error(t, he.Internal)
}

func TestHandlersRequireSession(t *testing.T) {
	e := echo.New()
	c := e.NewContext(nil, nil)
	_, err := currentSession(c)
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusUnauthorized, he.Code)
}
