package server

import (
	"time"

	"github.com/gofiber/contrib/websocket"
)

const pingInterval = 30 * time.Second

// streamEvents forwards orchestrator events to one websocket client until either
// side goes away.
func (s *Server) streamEvents(c *websocket.Conn) {
	events, unsubscribe := s.orch.Events().Subscribe()
	defer unsubscribe()
	defer c.Close()

	s.log.Debugw("event stream opened", "remote", c.RemoteAddr().String())

	// Reads only detect the client closing.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			s.log.Debugw("event stream closed")
			return
		case ev, ok := <-events:
			if !ok {
				_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutting down"))
				return
			}
			if err := c.WriteJSON(ev); err != nil {
				s.log.Debugw("event stream write failed", "error", err)
				return
			}
		case <-ping.C:
			if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
