package api

import (
	"net/http"

	"golang.org/x/net/websocket"
)

// wsSink adapts a websocket connection to the broadcast sink contract.
type wsSink struct {
	conn *websocket.Conn
}

func (s *wsSink) Send(msg []byte) error {
	return websocket.Message.Send(s.conn, string(msg))
}

func (s *wsSink) Close() error {
	return s.conn.Close()
}

// websocketHandler registers each connection as a live observer. The feed
// is push-only; inbound frames are read and discarded so closes surface.
func (h *Handler) websocketHandler() http.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		c := h.hub.Broadcast().Register(&wsSink{conn: conn})
		defer h.hub.Broadcast().Unregister(c)

		h.logger.Debug("observer connected", "conn_id", c.ID())
		for {
			var discard string
			if err := websocket.Message.Receive(conn, &discard); err != nil {
				h.logger.Debug("observer disconnected", "conn_id", c.ID())
				return
			}
		}
	})
}
