package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/finchsocial/finch/internal/domain"
)

const reconnectDelay = 5 * time.Second

// Listen subscribes to the server's event stream and hands every event
// to handler until the context is cancelled. It automatically
// reconnects on transient errors.
func (c *Client) Listen(ctx context.Context, handler func(domain.Event)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := c.listen(ctx, handler); err != nil {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(reconnectDelay):
					// backoff before reconnecting
				}
			}
		}
	}
}

func (c *Client) listen(ctx context.Context, handler func(domain.Event)) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.streamURL(), nil)
	if err != nil {
		return fmt.Errorf("dial stream: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read event: %w", err)
		}

		var event domain.Event
		if err := json.Unmarshal(message, &event); err != nil {
			return fmt.Errorf("unmarshal event: %w", err)
		}
		handler(event)
	}
}

func (c *Client) streamURL() string {
	u := c.baseURL + "/api/stream"
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	default:
		return u
	}
}
