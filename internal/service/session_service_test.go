package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/weiawesome/wes-io-chat/internal/config"
	"github.com/weiawesome/wes-io-chat/internal/dispatcher"
	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/hub"
	"github.com/weiawesome/wes-io-chat/internal/mocks"
	"github.com/weiawesome/wes-io-chat/internal/presence"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type sessionEnv struct {
	dir     *presence.Directory
	hub     *hub.Hub
	gateway *mocks.MockGateway
	svc     SessionService
}

func newSessionEnv(t *testing.T) *sessionEnv {
	t.Helper()
	ctrl := gomock.NewController(t)
	dir := presence.NewDirectory()
	h := hub.NewHub()
	gw := mocks.NewMockGateway(ctrl)
	svc := NewSessionService(dir, dispatcher.New(dir, h), h, gw, time.Second)
	return &sessionEnv{dir: dir, hub: h, gateway: gw, svc: svc}
}

func (e *sessionEnv) connect(t *testing.T, connID, userID string) *hub.Client {
	t.Helper()
	c := hub.NewClient(context.Background(), connID, nil, config.WebSocketConfig{SendBuffer: 16})
	require.NoError(t, e.svc.Connect(c, &domain.User{ID: userID, Name: "name-" + userID}))
	return c
}

func send(t *testing.T, svc SessionService, c *hub.Client, event string, data interface{}) {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{"event": event, "data": data})
	require.NoError(t, err)
	svc.HandleMessage(c, raw)
}

func drain(c *hub.Client) []frame {
	var out []frame
	for {
		select {
		case raw, ok := <-c.Send:
			if !ok {
				return out
			}
			var f frame
			_ = json.Unmarshal(raw, &f)
			out = append(out, f)
		default:
			return out
		}
	}
}

func events(frames []frame) []string {
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, f.Event)
	}
	return out
}

func TestSessionConnect(t *testing.T) {
	t.Run("should register and activate the client", func(t *testing.T) {
		req := require.New(t)
		env := newSessionEnv(t)

		c := env.connect(t, "c1", "u1")

		req.True(c.Session.IsActive())
		conn, ok := env.dir.Lookup("u1")
		req.True(ok)
		req.Equal("c1", conn)
		req.Equal(1, env.hub.Count())
	})

	t.Run("should refuse a second authentication", func(t *testing.T) {
		req := require.New(t)
		env := newSessionEnv(t)
		c := env.connect(t, "c1", "u1")

		req.ErrorIs(env.svc.Connect(c, &domain.User{ID: "u2"}), domain.ErrInvalidTransition)
	})
}

func TestSessionHandleMessage(t *testing.T) {
	t.Run("should relay a new message then persist it", func(t *testing.T) {
		req := require.New(t)
		env := newSessionEnv(t)
		alice := env.connect(t, "c1", "alice")
		bob := env.connect(t, "c2", "bob")

		env.gateway.EXPECT().
			CreateMessage(gomock.Any(), "alice", "chat1", "hello", gomock.Nil()).
			Return(&domain.Message{ID: "m1"}, nil)

		send(t, env.svc, alice, domain.EventNewMessage, map[string]interface{}{
			"chatId":  "chat1",
			"members": []string{"alice", "bob", "offline"},
			"message": "hello",
		})
		env.svc.Wait()

		got := drain(bob)
		req.Equal([]string{domain.EventNewMessage, domain.EventNewMessageAlert}, events(got))

		var payload domain.MessagePayload
		req.NoError(json.Unmarshal(got[0].Data, &payload))
		req.Equal("chat1", payload.ChatID)
		req.Equal("hello", payload.Message.Content)
		req.Equal("alice", payload.Message.Sender.ID)
		req.Equal("name-alice", payload.Message.Sender.Name)
		req.NotEmpty(payload.Message.ID)
		_, err := time.Parse(domain.RealtimeTimeLayout, payload.Message.CreatedAt)
		req.NoError(err)

		req.Equal([]string{domain.EventNewMessage, domain.EventNewMessageAlert}, events(drain(alice)))
	})

	t.Run("should report a persistence failure to the sender only", func(t *testing.T) {
		req := require.New(t)
		env := newSessionEnv(t)
		alice := env.connect(t, "c1", "alice")
		bob := env.connect(t, "c2", "bob")

		env.gateway.EXPECT().
			CreateMessage(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, errors.New("db down"))

		send(t, env.svc, alice, domain.EventNewMessage, map[string]interface{}{
			"chatId":  "chat1",
			"members": []string{"bob"},
			"message": "hello",
		})
		env.svc.Wait()

		req.Equal([]string{domain.EventNewMessage, domain.EventNewMessageAlert}, events(drain(bob)))

		got := drain(alice)
		req.Len(got, 1)
		req.Equal(domain.EventError, got[0].Event)
		var payload domain.ErrorPayload
		req.NoError(json.Unmarshal(got[0].Data, &payload))
		req.Equal(domain.ErrCodePersistence, payload.Code)
	})

	t.Run("should relay typing to members but not the typist", func(t *testing.T) {
		req := require.New(t)
		env := newSessionEnv(t)
		alice := env.connect(t, "c1", "alice")
		bob := env.connect(t, "c2", "bob")

		for _, ev := range []string{domain.EventStartTyping, domain.EventStopTyping} {
			send(t, env.svc, alice, ev, map[string]interface{}{
				"chatId":  "chat1",
				"members": []string{"alice", "bob"},
			})
		}

		req.Empty(drain(alice))
		got := drain(bob)
		req.Equal([]string{domain.EventStartTyping, domain.EventStopTyping}, events(got))
		req.JSONEq(`{"chatId":"chat1"}`, string(got[0].Data))
	})

	t.Run("should send the online snapshot to members", func(t *testing.T) {
		req := require.New(t)
		env := newSessionEnv(t)
		alice := env.connect(t, "c1", "alice")
		bob := env.connect(t, "c2", "bob")

		send(t, env.svc, alice, domain.EventOnlineUsers, map[string]interface{}{
			"members": []string{"alice", "bob"},
		})

		got := drain(bob)
		req.Len(got, 1)
		req.JSONEq(`["alice","bob"]`, string(got[0].Data))
		req.Len(drain(alice), 1)
	})

	t.Run("should answer ping with pong", func(t *testing.T) {
		req := require.New(t)
		env := newSessionEnv(t)
		alice := env.connect(t, "c1", "alice")

		env.svc.HandleMessage(alice, []byte(`{"event":"PING"}`))
		req.Equal([]string{domain.EventPong}, events(drain(alice)))
	})

	t.Run("should reply with an error to bad frames and keep going", func(t *testing.T) {
		req := require.New(t)
		env := newSessionEnv(t)
		alice := env.connect(t, "c1", "alice")

		for _, raw := range []string{
			`not json`,
			`{"data":{}}`,
			`{"event":"SHOUT"}`,
			`{"event":"NEW_MESSAGE"}`,
			`{"event":"NEW_MESSAGE","data":{"chatId":"c","members":[],"message":"x"}}`,
			`{"event":"NEW_MESSAGE","data":{"chatId":"c","members":["bob"],"message":""}}`,
		} {
			env.svc.HandleMessage(alice, []byte(raw))
		}

		got := drain(alice)
		req.Len(got, 6)
		for _, f := range got {
			req.Equal(domain.EventError, f.Event)
		}
		req.True(alice.Session.IsActive())
	})

	t.Run("should reject events from a client that is not active", func(t *testing.T) {
		req := require.New(t)
		env := newSessionEnv(t)
		c := hub.NewClient(context.Background(), "c9", nil, config.WebSocketConfig{SendBuffer: 4})
		env.hub.Add(c)

		env.svc.HandleMessage(c, []byte(`{"event":"PING"}`))
		got := drain(c)
		req.Len(got, 1)
		req.Equal(domain.EventError, got[0].Event)
	})
}

func TestSessionDisconnect(t *testing.T) {
	t.Run("should broadcast the new snapshot to the others once", func(t *testing.T) {
		req := require.New(t)
		env := newSessionEnv(t)
		alice := env.connect(t, "c1", "alice")
		bob := env.connect(t, "c2", "bob")

		env.svc.Disconnect(alice)
		env.svc.Disconnect(alice)

		req.False(env.dir.IsOnline("alice"))
		got := drain(bob)
		req.Len(got, 1)
		req.Equal(domain.EventOnlineUsers, got[0].Event)
		req.JSONEq(`["bob"]`, string(got[0].Data))
	})

	t.Run("should keep a user online when an older connection closes", func(t *testing.T) {
		req := require.New(t)
		env := newSessionEnv(t)
		old := env.connect(t, "c1", "alice")
		env.connect(t, "c2", "alice")
		bob := env.connect(t, "c3", "bob")

		env.svc.Disconnect(old)

		conn, ok := env.dir.Lookup("alice")
		req.True(ok)
		req.Equal("c2", conn)
		req.Empty(drain(bob))
	})

	t.Run("should not touch the directory for a client that never activated", func(t *testing.T) {
		req := require.New(t)
		env := newSessionEnv(t)
		env.connect(t, "c1", "alice")
		c := hub.NewClient(context.Background(), "c2", nil, config.WebSocketConfig{SendBuffer: 4})

		env.svc.Disconnect(c)

		req.True(env.dir.IsOnline("alice"))
		req.Equal(domain.StateDisconnected, c.Session.State())
	})
}
