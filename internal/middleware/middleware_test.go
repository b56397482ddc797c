package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/campus-skillshare/backend/internal/identity"
	"github.com/campus-skillshare/backend/internal/reconciler"
	"github.com/campus-skillshare/backend/internal/repositories"
	"github.com/campus-skillshare/backend/internal/session"
	"github.com/campus-skillshare/backend/internal/store"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRateLimiterPerKey(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute, 2, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.WithNowFunc(func() time.Time { return now })

	assert.True(t, limiter.Allow("alice"))
	assert.True(t, limiter.Allow("alice"))
	assert.False(t, limiter.Allow("alice"), "burst spent")
	assert.True(t, limiter.Allow("bob"), "keys are independent")

	now = now.Add(time.Minute)
	assert.True(t, limiter.Allow("alice"), "one token refilled")

	now = now.Add(2 * time.Minute)
	limiter.Allow("carol")
	assert.Equal(t, 1, limiter.Len(), "idle keys expire")
}

func TestRateLimitMiddleware(t *testing.T) {
	e := echo.New()
	limiter := NewRateLimiter(1, time.Hour, 1, time.Hour)
	handler := RateLimit(limiter, "api")(func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	call := func(method string) error {
		req := httptest.NewRequest(method, "/api/v1/requests", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		c := e.NewContext(req, httptest.NewRecorder())
		c.Set(IdentityKey, identity.Identity{UID: "alice"})
		return handler(c)
	}

	require.NoError(t, call(http.MethodPost))
	err := call(http.MethodPost)
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusTooManyRequests, he.Code)
	assert.NoError(t, call(http.MethodGet), "reads are not limited")
}

type stubProvider struct {
	identity.Provider
	ids map[string]identity.Identity
}

func (p stubProvider) Verify(token string) (identity.Identity, error) {
	id, ok := p.ids[token]
	if !ok {
		return identity.Identity{}, identity.ErrInvalidToken
	}
	return id, nil
}

func TestSessionAuth(t *testing.T) {
	s := store.NewMemoryStore()
	sessions := session.NewManager(session.Deps{
		Users:         repositories.NewDocumentUserRepository(s),
		Relationships: repositories.NewDocumentRelationshipRepository(s),
		Conversations: repositories.NewDocumentConversationRepository(s),
		Reconciler:    reconciler.New(s),
		Logger:        zap.NewNop(),
	})
	defer sessions.CloseAll()

	provider := stubProvider{ids: map[string]identity.Identity{"good": {UID: "alice", SessionID: "s1"}}}
	e := echo.New()
	var seen *session.Session
	handler := SessionAuth(provider, sessions)(func(c echo.Context) error {
		var ok bool
		seen, ok = SessionFrom(c)
		require.True(t, ok)
		id, ok := IdentityFrom(c)
		require.True(t, ok)
		assert.Equal(t, "alice", id.UID)
		return c.NoContent(http.StatusNoContent)
	})

	cases := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"missing header", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", "", http.StatusUnauthorized},
		{"unknown token", "Bearer bad", "", http.StatusUnauthorized},
		{"bearer token", "Bearer good", "", http.StatusNoContent},
		{"query token", "", "?access_token=good", http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/profile"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			err := handler(e.NewContext(req, rec))
			if tc.status == http.StatusNoContent {
				require.NoError(t, err)
				assert.Equal(t, http.StatusNoContent, rec.Code)
				return
			}
			var he *echo.HTTPError
			require.ErrorAs(t, err, &he)
			assert.Equal(t, tc.status, he.Code)
		})
	}

	require.NotNil(t, seen)
	assert.Equal(t, "alice", seen.UID())
	assert.Equal(t, 1, sessions.Len(), "one session per session id")

	// A token that still verifies after its session was closed does not bring it back.
	require.True(t, sessions.Close("s1"))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil)
	req.Header.Set("Authorization", "Bearer good")
	err := handler(e.NewContext(req, httptest.NewRecorder()))
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusUnauthorized, he.Code)
	assert.Equal(t, 0, sessions.Len())
}
