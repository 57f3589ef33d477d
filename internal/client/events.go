package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/fasthttp/websocket"

	"github.com/ShayCichocki/lincoln/internal/orchestrator"
)

// StreamEvents connects to /ws/events and calls fn for every event until ctx ends
// or the server closes the stream. A normal close returns nil.
func (c *Client) StreamEvents(ctx context.Context, fn func(orchestrator.OrchestratorEvent)) error {
	u, err := url.Parse(c.base + "/ws/events")
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		var ev orchestrator.OrchestratorEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		fn(ev)
	}
}
