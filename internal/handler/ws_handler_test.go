package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/pkg/jwt"
)

type wsFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func newWSServer(t *testing.T, h *WSHandler) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url, token string, header http.Header) *websocket.Conn {
	t.Helper()
	if header == nil {
		header = http.Header{}
	}
	header.Set("Cookie", testCookie+"="+token)
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func writeFrame(t *testing.T, conn *websocket.Conn, event string, data interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"event": event, "data": data}))
}

// readEvent reads frames until one carries event.
func readEvent(t *testing.T, conn *websocket.Conn, event string) wsFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var f wsFrame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Event == event {
			return f
		}
	}
}

// ready waits until the server has activated conn.
func ready(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	writeFrame(t, conn, domain.EventPing, nil)
	readEvent(t, conn, domain.EventPong)
}

func TestWebSocket(t *testing.T) {
	t.Run("should relay a message to chat members and store it", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		alice, aliceToken := env.user(t, "alice")
		bob, bobToken := env.user(t, "bob")
		chat := env.chat(t, "ab", false, alice.ID, alice.ID, bob.ID)
		url := newWSServer(t, env.ws)

		aliceConn := dial(t, url, aliceToken, nil)
		bobConn := dial(t, url, bobToken, nil)
		ready(t, aliceConn)
		ready(t, bobConn)

		writeFrame(t, aliceConn, domain.EventNewMessage, domain.NewMessageEvent{
			ChatID:  chat.ID,
			Members: []string{alice.ID, bob.ID},
			Message: "hello",
		})

		f := readEvent(t, bobConn, domain.EventNewMessage)
		var payload domain.MessagePayload
		req.NoError(json.Unmarshal(f.Data, &payload))
		req.Equal(chat.ID, payload.ChatID)
		req.Equal("hello", payload.Message.Content)
		req.Equal(alice.ID, payload.Message.Sender.ID)
		readEvent(t, bobConn, domain.EventNewMessageAlert)

		req.Eventually(func() bool {
			n, err := env.messages.CountByChat(context.Background(), chat.ID)
			return err == nil && n == 1
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("should tell remaining users when someone goes offline", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		_, aliceToken := env.user(t, "alice")
		bob, bobToken := env.user(t, "bob")
		url := newWSServer(t, env.ws)

		aliceConn := dial(t, url, aliceToken, nil)
		bobConn := dial(t, url, bobToken, nil)
		ready(t, aliceConn)
		ready(t, bobConn)

		req.NoError(aliceConn.Close())

		f := readEvent(t, bobConn, domain.EventOnlineUsers)
		var online []string
		req.NoError(json.Unmarshal(f.Data, &online))
		req.Equal([]string{bob.ID}, online)
	})

	t.Run("should reject an upgrade without a valid session", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		url := newWSServer(t, env.ws)

		_, resp, err := websocket.DefaultDialer.Dial(url, nil)
		req.ErrorIs(err, websocket.ErrBadHandshake)
		req.Equal(http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()

		header := http.Header{}
		header.Set("Cookie", testCookie+"=forged")
		_, resp, err = websocket.DefaultDialer.Dial(url, header)
		req.ErrorIs(err, websocket.ErrBadHandshake)
		req.Equal(http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()

		req.Equal(0, env.directory.Count())
	})

	t.Run("should reject an expired session without registering the user", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		alice, _ := env.user(t, "alice")
		url := newWSServer(t, env.ws)

		expired, err := jwt.NewManager("test-secret", "test", -time.Minute, time.Hour)
		req.NoError(err)
		token, err := expired.IssueSession(alice.ID)
		req.NoError(err)

		header := http.Header{}
		header.Set("Cookie", testCookie+"="+token)
		_, resp, err := websocket.DefaultDialer.Dial(url, header)
		req.ErrorIs(err, websocket.ErrBadHandshake)
		req.Equal(http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()

		req.Equal(0, env.directory.Count())
		req.False(env.directory.IsOnline(alice.ID))
	})

	t.Run("should accept bearer tokens and enforce allowed origins", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		_, token := env.user(t, "alice")
		h := NewWSHandler(env.ws.auth, env.ws.sessions, env.ws.wsCfg, testCookie, []string{"http://app.example"})
		url := newWSServer(t, h)

		header := http.Header{}
		header.Set("Authorization", "Bearer "+token)
		header.Set("Origin", "http://evil.example")
		_, resp, err := websocket.DefaultDialer.Dial(url, header)
		req.ErrorIs(err, websocket.ErrBadHandshake)
		req.Equal(http.StatusForbidden, resp.StatusCode)
		resp.Body.Close()

		header.Set("Origin", "http://app.example")
		conn, resp, err := websocket.DefaultDialer.Dial(url, header)
		req.NoError(err)
		resp.Body.Close()
		t.Cleanup(func() { conn.Close() })
		ready(t, conn)
	})

	t.Run("should answer malformed frames with an error", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		_, token := env.user(t, "alice")
		conn := dial(t, newWSServer(t, env.ws), token, nil)

		req.NoError(conn.WriteMessage(websocket.TextMessage, []byte("not json")))
		f := readEvent(t, conn, domain.EventError)
		var payload domain.ErrorPayload
		req.NoError(json.Unmarshal(f.Data, &payload))
		req.Equal(domain.ErrCodeBadRequest, payload.Code)
	})
}
