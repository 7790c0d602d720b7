package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/jjudge-oj/practice/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newEventsServer(t *testing.T, identity *fakeIdentity) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Use(LoadSession(identity))
	r.Get("/session/events", NewEventsHandler(identity.notifier, []string{"http://allowed.example"}, zap.NewNop()).Serve)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dialEvents(t *testing.T, srv *httptest.Server, token, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/session/events?token=" + token
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	return websocket.DefaultDialer.Dial(url, header)
}

func readEvent(t *testing.T, conn *websocket.Conn) SessionEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var event SessionEvent
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func TestSessionEventsPushesChanges(t *testing.T) {
	identity := newFakeIdentity()
	identity.grant("tok", 5, false)
	identity.verify["link"] = 5
	srv := newEventsServer(t, identity)

	conn, _, err := dialEvents(t, srv, "tok", "http://allowed.example")
	require.NoError(t, err)
	defer conn.Close()

	first := readEvent(t, conn)
	assert.Equal(t, "session", first.Type)
	assert.Equal(t, session.VerifyView, first.Access.Redirect)

	require.Eventually(t, func() bool { return identity.notifier.Len() == 1 }, 5*time.Second, 10*time.Millisecond)

	_, err = identity.ConfirmEmail(t.Context(), "link")
	require.NoError(t, err)
	verified := readEvent(t, conn)
	assert.True(t, verified.Session.EmailVerified)
	assert.True(t, verified.Access.IsAllowed())

	require.NoError(t, identity.Logout(t.Context(), "tok"))
	loggedOut := readEvent(t, conn)
	assert.False(t, loggedOut.Session.Present())
	assert.Equal(t, session.LoginView, loggedOut.Access.Redirect)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	require.Eventually(t, func() bool { return identity.notifier.Len() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestSessionEventsRejects(t *testing.T) {
	identity := newFakeIdentity()
	identity.grant("tok", 5, true)
	srv := newEventsServer(t, identity)

	_, resp, err := dialEvents(t, srv, "", "")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = dialEvents(t, srv, "tok", "http://evil.example")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
