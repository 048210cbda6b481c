package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/phrazzld/tasksync/internal/config"
	"github.com/phrazzld/tasksync/internal/domain"
	"github.com/phrazzld/tasksync/internal/events"
	"github.com/phrazzld/tasksync/internal/platform/logger"
	"github.com/phrazzld/tasksync/internal/presence"
	"github.com/phrazzld/tasksync/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	server   *httptest.Server
	registry *presence.Registry
	jwt      auth.JWTService
}

func newTestServer(t *testing.T, cfg Config) *testServer {
	t.Helper()
	log, _ := logger.NewTestLogger()

	jwtSvc, err := auth.NewJWTService(config.AuthConfig{
		JWTSecret:            "test-secret-that-is-at-least-32-characters",
		TokenLifetimeMinutes: 60,
	})
	require.NoError(t, err)

	registry := presence.NewRegistry(log)
	srv := httptest.NewServer(NewHandler(jwtSvc, registry, cfg, log))
	t.Cleanup(func() {
		registry.Close()
		srv.Close()
	})
	return &testServer{server: srv, registry: registry, jwt: jwtSvc}
}

func (s *testServer) wsURL(query string) string {
	u := "ws" + strings.TrimPrefix(s.server.URL, "http")
	if query != "" {
		u += "?" + query
	}
	return u
}

func (s *testServer) token(t *testing.T, id domain.Identity) string {
	t.Helper()
	tok, err := s.jwt.GenerateToken(context.Background(), id.ID, id.Role)
	require.NoError(t, err)
	return tok
}

func (s *testServer) dial(t *testing.T, id domain.Identity) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.token(t, id))
	ws, _, err := websocket.DefaultDialer.Dial(s.wsURL(""), header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })

	connected := readFrame(t, ws)
	require.Equal(t, TypeConnected, connected["type"])
	require.Equal(t, id.ID.String(), connected["userId"])
	return ws
}

func readFrame(t *testing.T, ws *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	var frame map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func member() domain.Identity {
	return domain.Identity{ID: uuid.New(), Role: domain.RoleMember}
}

func TestHandshakeRequiresToken(t *testing.T) {
	s := newTestServer(t, DefaultConfig())

	_, resp, err := websocket.DefaultDialer.Dial(s.wsURL(""), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(s.wsURL("token=forged"), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	assert.Equal(t, 0, s.registry.Count())
}

func TestHandshakeBindsVerifiedIdentity(t *testing.T) {
	s := newTestServer(t, DefaultConfig())
	m := member()

	s.dial(t, m)
	assert.True(t, s.registry.IsPresent(m.ID))
	assert.Len(t, s.registry.HandlesOf(m.ID), 1)

	ws, _, err := websocket.DefaultDialer.Dial(s.wsURL("token="+s.token(t, m)), nil)
	require.NoError(t, err)
	defer ws.Close()
	assert.Equal(t, TypeConnected, readFrame(t, ws)["type"])
	assert.Len(t, s.registry.HandlesOf(m.ID), 2, "one identity may hold many channels")
}

func TestRegisterMessage(t *testing.T) {
	s := newTestServer(t, DefaultConfig())
	m := member()
	ws := s.dial(t, m)

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "register", "userId": m.ID.String()}))
	assert.Equal(t, TypeRegistered, readFrame(t, ws)["type"])

	other := uuid.New()
	require.NoError(t, ws.WriteJSON(map[string]string{"type": "register", "userId": other.String()}))
	frame := readFrame(t, ws)
	assert.Equal(t, TypeError, frame["type"])
	assert.NotEmpty(t, frame["error"], "error frames use the same key as REST errors")
	assert.NotContains(t, frame, "message")
	assert.False(t, s.registry.IsPresent(other), "register never rebinds")
	assert.True(t, s.registry.IsPresent(m.ID))

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.Equal(t, TypeError, readFrame(t, ws)["type"])

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "subscribe"}))
	assert.Equal(t, "unknown message type", readFrame(t, ws)["error"])
}

func TestClosingChannelUnbindsOnlyThatHandle(t *testing.T) {
	s := newTestServer(t, DefaultConfig())
	m := member()

	first := s.dial(t, m)
	s.dial(t, m)
	require.Len(t, s.registry.HandlesOf(m.ID), 2)

	require.NoError(t, first.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	_ = first.Close()

	require.Eventually(t, func() bool {
		return len(s.registry.HandlesOf(m.ID)) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, s.registry.IsPresent(m.ID))
}

func TestOriginCheck(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowedOrigins = []string{"https://app.example.com"}
	s := newTestServer(t, cfg)
	m := member()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.token(t, m))
	header.Set("Origin", "https://evil.example.com")
	_, resp, err := websocket.DefaultDialer.Dial(s.wsURL(""), header)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://app.example.com")
	ws, _, err := websocket.DefaultDialer.Dial(s.wsURL(""), header)
	require.NoError(t, err)
	_ = ws.Close()
}

type staticAdmins []uuid.UUID

func (a staticAdmins) ListIDsByRole(ctx context.Context, role domain.Role) ([]uuid.UUID, error) {
	return a, nil
}

func TestDispatcherDeliversOverChannel(t *testing.T) {
	s := newTestServer(t, DefaultConfig())
	log, _ := logger.NewTestLogger()

	adminA := domain.Identity{ID: uuid.New(), Role: domain.RoleAdmin}
	adminC := domain.Identity{ID: uuid.New(), Role: domain.RoleAdmin}
	memberB := member()

	wsA := s.dial(t, adminA)
	wsC := s.dial(t, adminC)
	wsB := s.dial(t, memberB)

	d := events.NewDispatcher(s.registry, staticAdmins{adminA.ID, adminC.ID}, events.DefaultDispatcherConfig(), log)
	d.Start()
	defer func() { _ = d.Stop(context.Background()) }()

	task, err := domain.NewTask("Ship release", "", "", adminA.ID, memberB.ID)
	require.NoError(t, err)
	require.NoError(t, d.HandleEvent(context.Background(), events.NewTaskEvent(events.KindTaskCreated, task, adminA.ID)))

	for _, ws := range []*websocket.Conn{wsC, wsB} {
		frame := readFrame(t, ws)
		assert.Equal(t, string(events.KindTaskCreated), frame["type"])
		assert.Equal(t, task.ID.String(), frame["taskId"])
		assert.Equal(t, adminA.ID.String(), frame["actorId"])
	}

	require.NoError(t, wsA.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err = wsA.ReadMessage()
	assert.Error(t, err, "the actor receives nothing")
}

func TestConnSendAfterClose(t *testing.T) {
	s := newTestServer(t, DefaultConfig())
	m := member()
	s.dial(t, m)

	handles := s.registry.HandlesOf(m.ID)
	require.Len(t, handles, 1)
	require.NoError(t, handles[0].Close())
	assert.NoError(t, handles[0].Close(), "second close is a no-op")

	err := handles[0].Send(context.Background(), []byte(`{}`))
	assert.ErrorIs(t, err, ErrConnClosed)
}

func TestNewHandlerNormalizesConfig(t *testing.T) {
	log, _ := logger.NewTestLogger()
	jwtSvc, err := auth.NewJWTService(config.AuthConfig{
		JWTSecret:            "test-secret-that-is-at-least-32-characters",
		TokenLifetimeMinutes: 60,
	})
	require.NoError(t, err)

	h := NewHandler(jwtSvc, presence.NewRegistry(log), Config{PongWait: 10 * time.Second, PingPeriod: time.Minute}, log)
	assert.Equal(t, 2*time.Second, h.config.WriteTimeout)
	assert.Equal(t, 9*time.Second, h.config.PingPeriod)
	assert.Equal(t, int64(4096), h.config.MaxMessageBytes)

	assert.Panics(t, func() { NewHandler(nil, presence.NewRegistry(log), Config{}, log) })
}
