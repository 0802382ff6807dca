package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
)

// Client calls chat.v1.Notifier.
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Notify marshals payload and returns how many connections received the event.
func (c *Client) Notify(ctx context.Context, event string, targets []string, payload interface{}) (int, error) {
	req := &NotifyRequest{Event: event, Targets: targets}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal payload: %w", err)
		}
		req.Payload = raw
	}

	resp := new(NotifyResponse)
	if err := c.conn.Invoke(ctx, notifyMethod, req, resp, grpc.CallContentSubtype(CodecName)); err != nil {
		return 0, err
	}
	return int(resp.Delivered), nil
}
