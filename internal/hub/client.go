package hub

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/weiawesome/wes-io-chat/internal/config"
	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

// Client is one websocket connection. Frames reach it only through Hub.Deliver;
// nothing else writes to Send.
type Client struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan []byte
	Session *domain.Session
	config  config.WebSocketConfig
	ctx     context.Context
}

func NewClient(ctx context.Context, id string, conn *websocket.Conn, cfg config.WebSocketConfig) *Client {
	buffer := cfg.SendBuffer
	if buffer <= 0 {
		buffer = 256
	}
	return &Client{
		ID:      id,
		Conn:    conn,
		Send:    make(chan []byte, buffer),
		Session: domain.NewSession(id),
		config:  cfg,
		ctx:     log.Enrich(ctx, log.FieldConnID, id),
	}
}

// Context carries the connection's logger. It is not cancelled when the
// upgrade request returns.
func (c *Client) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// ReadPump reads frames until the connection fails, then calls onClose once.
func (c *Client) ReadPump(handle func(*Client, []byte), onClose func(*Client)) {
	defer func() {
		onClose(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				l := log.Ctx(c.ctx)
				l.Warn().Err(err).Msg("websocket read failed")
			}
			break
		}

		c.Session.UpdateActivity()
		handle(c, message)
	}
}

// WritePump drains Send to the socket and pings on PingInterval. It returns
// when Send is closed or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
