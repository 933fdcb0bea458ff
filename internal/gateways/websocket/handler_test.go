package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"coderoom/internal/app/history"
	"coderoom/internal/app/session"
	"coderoom/internal/app/upload"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	*httptest.Server
	hub    *Hub
	ledger *history.Ledger
}

func startServer(t *testing.T, origins []string) *testServer {
	t.Helper()
	return startServerWith(t, origins, ClientOptions{SendBuffer: 32})
}

func startServerWith(t *testing.T, origins []string, clientOpts ClientOptions) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	storage, err := upload.NewLocalStorage(t.TempDir(), "/uploads")
	require.NoError(t, err)

	hub := NewHub(logger)
	ledger := history.NewLedger(nil)
	room := NewRoom(hub, ledger, session.NewRegistry("secret"), &captureScheduler{},
		upload.NewService(storage, 1024, logger), RoomOptions{Presence: true}, logger)
	handler := NewHandler(room, hub, NewOriginPolicy(origins, logger), clientOpts, 1024, logger)

	r := gin.New()
	RegisterRoutes(r, handler)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		hub.Shutdown(ctx)
		srv.Close()
	})

	return &testServer{Server: srv, hub: hub, ledger: ledger}
}

func (s *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"
}

func dial(t *testing.T, s *testServer) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(s.wsURL(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	frame := readFrame(t, conn)
	require.Equal(t, EventLoadHistory, frame.Event)
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Envelope{Event: event, Data: raw}))
}

func readFrame(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

// readUntil skips presence frames until event arrives.
func readUntil(t *testing.T, conn *websocket.Conn, event string) Envelope {
	t.Helper()
	for {
		env := readFrame(t, conn)
		if env.Event == event {
			return env
		}
		require.Contains(t, []string{EventUserJoined, EventUserLeft, EventUpdateUserList}, env.Event,
			"unexpected %s while waiting for %s", env.Event, event)
	}
}

func TestAdminRedactionScenario(t *testing.T) {
	s := startServer(t, []string{"*"})

	a := dial(t, s)
	send(t, a, EventJoin, JoinPayload{Name: "alice"})
	readUntil(t, a, EventUpdateUserList)

	send(t, a, EventSendMessage, SendMessagePayload{Content: "print(1)"})
	frame := readUntil(t, a, EventNewMessage)
	var posted history.Message
	require.NoError(t, json.Unmarshal(frame.Data, &posted))
	assert.Equal(t, history.KindCode, posted.Kind)
	assert.False(t, posted.IsDeleted)
	assert.Equal(t, "alice", posted.Author)

	// Frames from one connection are applied in order, so the reply to the
	// second submission proves the delete produced no resync.
	send(t, a, EventDeleteMessage, DeleteMessagePayload{MessageID: posted.ID})
	send(t, a, EventSendMessage, SendMessagePayload{Content: "print(2)"})
	assert.Equal(t, EventNewMessage, readFrame(t, a).Event)
	current, err := s.ledger.FindByID(posted.ID)
	require.NoError(t, err)
	assert.Equal(t, "print(1)", current.Content)

	b := dial(t, s)
	send(t, b, EventJoin, JoinPayload{Name: "bob", AdminKey: "secret"})
	status := readFrame(t, b)
	require.Equal(t, EventAdminStatus, status.Event)
	assert.JSONEq(t, `{"isAdmin":true}`, string(status.Data))
	readUntil(t, b, EventUpdateUserList)

	send(t, b, EventDeleteMessage, DeleteMessagePayload{MessageID: posted.ID})

	for _, conn := range []*websocket.Conn{a, b} {
		frame := readUntil(t, conn, EventLoadHistory)
		var messages []history.Message
		require.NoError(t, json.Unmarshal(frame.Data, &messages))
		require.Len(t, messages, 2)
		assert.Equal(t, posted.ID, messages[0].ID)
		assert.Equal(t, history.RedactedContent, messages[0].Content)
		assert.True(t, messages[0].IsDeleted)
		assert.False(t, messages[1].IsDeleted)
	}
}

func TestOriginPolicyRejectsUnknownOrigin(t *testing.T) {
	s := startServer(t, []string{"http://allowed.example"})

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(s.wsURL(), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header = http.Header{"Origin": []string{"HTTP://Allowed.Example"}}
	conn, _, err := websocket.DefaultDialer.Dial(s.wsURL(), header)
	require.NoError(t, err)
	conn.Close()
}

func TestOversizedFrameClosesConnection(t *testing.T) {
	s := startServer(t, []string{"*"})
	conn := dial(t, s)

	huge := strings.Repeat("a", int(readLimit(1024))+1)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(huge)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Eventually(t, func() bool { return s.hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestShutdownClosesClients(t *testing.T) {
	s := startServer(t, []string{"*"})
	conn := dial(t, s)

	require.NoError(t, s.hub.Shutdown(context.Background()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestRateLimitDropsOnlySubmissions(t *testing.T) {
	s := startServerWith(t, []string{"*"}, ClientOptions{SendBuffer: 32, RateRPS: 0.001, RateBurst: 2})
	conn := dial(t, s)

	for _, content := range []string{"one", "two", "three"} {
		send(t, conn, EventSendMessage, SendMessagePayload{Content: content})
	}
	var first history.Message
	require.NoError(t, json.Unmarshal(readUntil(t, conn, EventNewMessage).Data, &first))
	assert.Equal(t, "one", first.Content)
	assert.Equal(t, EventNewMessage, readFrame(t, conn).Event)

	// The budget is spent but join and delete still go through.
	send(t, conn, EventJoin, JoinPayload{Name: "root", AdminKey: "secret"})
	assert.Equal(t, EventAdminStatus, readFrame(t, conn).Event)
	readUntil(t, conn, EventUpdateUserList)

	send(t, conn, EventDeleteMessage, DeleteMessagePayload{MessageID: first.ID})
	frame := readFrame(t, conn)
	require.Equal(t, EventLoadHistory, frame.Event)

	var messages []history.Message
	require.NoError(t, json.Unmarshal(frame.Data, &messages))
	require.Len(t, messages, 2)
	assert.True(t, messages[0].IsDeleted)
	assert.Equal(t, "two", messages[1].Content)
}
