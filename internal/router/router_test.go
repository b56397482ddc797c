package router

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/campus-skillshare/backend/internal/store"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
	Message string          `json:"message"`
}

type server struct {
	t    *testing.T
	echo *echo.Echo
	app  *App
}

func newServer(t *testing.T) *server {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	e := echo.New()
	e.HideBanner = true
	SetupMiddleware(e, nil)
	app, err := SetupRoutes(e, Dependencies{
		Postgres: db,
		Store:    store.NewMemoryStore(),
		Settings: Settings{
			JWTSecret:         "test-secret",
			TokenTTL:          time.Hour,
			ToastTimeout:      time.Minute,
			RateLimitRequests: 1000,
			RateLimitWindow:   time.Second,
			RateLimitBurst:    1000,
		},
	})
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return &server{t: t, echo: e, app: app}
}

func (s *server) do(method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &env)
	}
	return rec, env
}

type account struct {
	token string
	uid   string
}

func (s *server) register(name, email string, teach, learn []string) account {
	s.t.Helper()
	rec, env := s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": name, "email": email, "password": "password123",
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	var grant struct {
		Token    string `json:"token"`
		Identity struct {
			UID string `json:"uid"`
		} `json:"identity"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &grant))

	rec, _ = s.do(http.MethodPut, "/api/v1/profile", grant.Token, map[string]any{
		"university": "NUST", "skillsToTeach": teach, "skillsToLearn": learn,
	})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	return account{token: grant.Token, uid: grant.Identity.UID}
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	rec, _ := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestConnectAndMessageOverHTTP(t *testing.T) {
	s := newServer(t)
	alice := s.register("Alice", "alice@campus.edu", []string{"Photoshop"}, []string{"C++"})
	bob := s.register("Bob", "bob@campus.edu", []string{"C++"}, []string{"Photoshop"})

	_, env := s.do(http.MethodGet, "/api/v1/suggestions", alice.token, nil)
	suggestions := decode[struct {
		Suggestions []struct {
			User  struct{ UID string } `json:"user"`
			Score int                  `json:"score"`
		} `json:"suggestions"`
	}](t, env.Data)
	require.Len(t, suggestions.Suggestions, 1)
	assert.Equal(t, bob.uid, suggestions.Suggestions[0].User.UID)
	assert.Equal(t, 2, suggestions.Suggestions[0].Score)

	rec, _ := s.do(http.MethodPost, "/api/v1/requests", alice.token, map[string]string{"uid": bob.uid})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	_, env = s.do(http.MethodGet, "/api/v1/invitations", bob.token, nil)
	invitations := decode[struct {
		Invitations []struct {
			UID    string `json:"uid"`
			Status string `json:"status"`
		} `json:"invitations"`
	}](t, env.Data)
	require.Len(t, invitations.Invitations, 1)
	assert.Equal(t, alice.uid, invitations.Invitations[0].UID)
	assert.Equal(t, "pending", invitations.Invitations[0].Status)

	rec, _ = s.do(http.MethodPost, "/api/v1/invitations/"+alice.uid+"/accept", bob.token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for _, a := range []account{alice, bob} {
		_, env = s.do(http.MethodGet, "/api/v1/connections", a.token, nil)
		conns := decode[struct {
			Connections []struct{ UID string } `json:"connections"`
		}](t, env.Data)
		assert.Len(t, conns.Connections, 1)
	}

	rec, _ = s.do(http.MethodPost, "/api/v1/requests", alice.token, map[string]string{"uid": bob.uid})
	assert.Equal(t, http.StatusConflict, rec.Code, "already connected")

	rec, _ = s.do(http.MethodPost, "/api/v1/conversations/"+bob.uid+"/messages", alice.token, map[string]string{"text": "hi bob"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	_, env = s.do(http.MethodGet, "/api/v1/conversations", bob.token, nil)
	convs := decode[struct {
		Conversations []struct {
			DisplayName string `json:"displayName"`
			LastMessage string `json:"lastMessage"`
		} `json:"conversations"`
	}](t, env.Data)
	require.Len(t, convs.Conversations, 1)
	assert.Equal(t, "Alice", convs.Conversations[0].DisplayName)
	assert.Equal(t, "hi bob", convs.Conversations[0].LastMessage)

	_, env = s.do(http.MethodGet, "/api/v1/activity", alice.token, nil)
	assert.EqualValues(t, 4, env.Meta["totalItems"], "send, accept, refused resend and message")
	_, env = s.do(http.MethodGet, "/api/v1/activity/failed", alice.token, nil)
	failed := decode[struct {
		Activity []struct {
			Action string `json:"action"`
		} `json:"activity"`
	}](t, env.Data)
	require.Len(t, failed.Activity, 1)
	assert.Equal(t, "send_request", failed.Activity[0].Action)

	_, env = s.do(http.MethodGet, "/api/v1/toasts", bob.token, nil)
	toasts := decode[struct {
		Toasts []struct{ Message string } `json:"toasts"`
	}](t, env.Data)
	var messages []string
	for _, toast := range toasts.Toasts {
		messages = append(messages, toast.Message)
	}
	assert.Contains(t, messages, "You are now connected with Alice")
}

func TestCancelFlowOverHTTP(t *testing.T) {
	s := newServer(t)
	alice := s.register("Alice", "alice@campus.edu", []string{"Go"}, []string{"Rust"})
	bob := s.register("Bob", "bob@campus.edu", []string{"Rust"}, []string{"Go"})

	rec, _ := s.do(http.MethodPost, "/api/v1/requests", alice.token, map[string]string{"uid": bob.uid})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = s.do(http.MethodPost, "/api/v1/requests/cancel/confirm", alice.token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "nothing held yet")

	rec, _ = s.do(http.MethodPost, "/api/v1/requests/"+bob.uid+"/cancel", alice.token, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	_, env := s.do(http.MethodGet, "/api/v1/requests/cancel", alice.token, nil)
	held := decode[struct {
		AwaitingConfirmation bool `json:"awaitingConfirmation"`
	}](t, env.Data)
	assert.True(t, held.AwaitingConfirmation)

	rec, _ = s.do(http.MethodPost, "/api/v1/requests/cancel/confirm", alice.token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	_, env = s.do(http.MethodGet, "/api/v1/invitations", bob.token, nil)
	invitations := decode[struct {
		Invitations []json.RawMessage `json:"invitations"`
	}](t, env.Data)
	assert.Empty(t, invitations.Invitations)

	rec, _ = s.do(http.MethodPost, "/api/v1/invitations/"+alice.uid+"/deny", bob.token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthErrorsOverHTTP(t *testing.T) {
	s := newServer(t)
	alice := s.register("Alice", "alice@campus.edu", []string{"Go"}, []string{"Rust"})

	rec, _ := s.do(http.MethodGet, "/api/v1/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "Again", "email": "alice@campus.edu", "password": "password123",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = s.do(http.MethodPost, "/api/v1/auth/signin", "", map[string]string{"email": "alice@campus.edu", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = s.do(http.MethodPost, "/api/v1/auth/firebase-login", "", map[string]string{"idToken": "x"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, _ = s.do(http.MethodPut, "/api/v1/profile", alice.token, map[string]any{
		"skillsToTeach": []string{"Go"}, "skillsToLearn": []string{"Rust"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "university is required")

	rec, _ = s.do(http.MethodPut, "/api/v1/auth/display-name", alice.token, map[string]string{"name": "Alice K"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	_, env := s.do(http.MethodGet, "/api/v1/profile", alice.token, nil)
	profile := decode[struct {
		Name       string `json:"name"`
		University string `json:"university"`
	}](t, env.Data)
	assert.Equal(t, "Alice K", profile.Name)
	assert.Equal(t, "NUST", profile.University)
	_, env = s.do(http.MethodGet, "/api/v1/auth/me", alice.token, nil)
	me := decode[struct {
		Name string `json:"name"`
	}](t, env.Data)
	assert.Equal(t, "Alice K", me.Name)

	assert.Equal(t, 1, s.app.Sessions.Len())
	rec, _ = s.do(http.MethodPost, "/api/v1/auth/signout", alice.token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, s.app.Sessions.Len(), "signing out closes the session")

	rec, _ = s.do(http.MethodGet, "/api/v1/profile", alice.token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type sseEvent struct {
	name string
	data string
}

// readEvent returns the next named event, skipping heartbeat comments.
func readEvent(t *testing.T, reader *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if ev.name != "" {
				return ev
			}
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func openStream(t *testing.T, ts *httptest.Server, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.URL+path+"?access_token="+token, nil)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get(echo.HeaderContentType))
	return resp
}

func TestEventStreamDeliversToastsAndConversations(t *testing.T) {
	s := newServer(t)
	alice := s.register("Alice", "alice@campus.edu", []string{"Go"}, []string{"Rust"})
	bob := s.register("Bob", "bob@campus.edu", []string{"Rust"}, []string{"Go"})
	ts := httptest.NewServer(s.echo)
	defer ts.Close()

	resp := openStream(t, ts, "/api/v1/events", alice.token)
	defer resp.Body.Close()
	reader := bufio.NewReader(resp.Body)

	id, err := s.app.Identity.Verify(alice.token)
	require.NoError(t, err)
	sess, ok := s.app.Sessions.Get(id.SessionID)
	require.True(t, ok)
	sess.Notify("hello from the server")

	seen := map[string]string{}
	for len(seen) < 2 {
		ev := readEvent(t, reader)
		seen[ev.name] = ev.data
	}
	assert.Contains(t, seen["toast"], "hello from the server")
	assert.Contains(t, seen, "conversations", "the current list is sent when the stream opens")

	rec, _ := s.do(http.MethodPost, "/api/v1/conversations/"+alice.uid+"/messages", bob.token, map[string]string{"text": "live hello"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	for {
		ev := readEvent(t, reader)
		if ev.name == "conversations" && strings.Contains(ev.data, "live hello") {
			assert.Contains(t, ev.data, `"displayName":"Bob"`)
			break
		}
	}

	// Ending the session ends the stream.
	s.app.Sessions.Close(id.SessionID)
	_, err = io.ReadAll(reader)
	assert.NoError(t, err)
}

func TestMessageStream(t *testing.T) {
	s := newServer(t)
	alice := s.register("Alice", "alice@campus.edu", []string{"Go"}, []string{"Rust"})
	bob := s.register("Bob", "bob@campus.edu", []string{"Rust"}, []string{"Go"})
	ts := httptest.NewServer(s.echo)
	defer ts.Close()

	rec, env := s.do(http.MethodPost, "/api/v1/conversations/"+bob.uid+"/messages", alice.token, map[string]string{"text": "first"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sent := decode[struct {
		ID        string    `json:"id"`
		CreatedAt time.Time `json:"createdAt"`
	}](t, env.Data)
	assert.NotEmpty(t, sent.ID)
	assert.False(t, sent.CreatedAt.IsZero(), "the response carries the stored timestamp")

	resp := openStream(t, ts, "/api/v1/conversations/"+alice.uid+"/events", bob.token)
	defer resp.Body.Close()
	reader := bufio.NewReader(resp.Body)

	backlog := readEvent(t, reader)
	assert.Equal(t, "messages", backlog.name)
	assert.Contains(t, backlog.data, "first")

	rec, _ = s.do(http.MethodPost, "/api/v1/conversations/"+bob.uid+"/messages", alice.token, map[string]string{"text": "second"})
	require.Equal(t, http.StatusCreated, rec.Code)
	next := readEvent(t, reader)
	assert.Equal(t, "message", next.name)
	assert.Contains(t, next.data, "second")
	assert.NotContains(t, next.data, "first", "earlier messages are not repeated")

	rec, _ = s.do(http.MethodGet, "/api/v1/conversations/"+bob.uid+"/events", bob.token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "no conversation with yourself")

	id, err := s.app.Identity.Verify(bob.token)
	require.NoError(t, err)
	s.app.Sessions.Close(id.SessionID)
	_, err = io.ReadAll(reader)
	assert.NoError(t, err)
}
