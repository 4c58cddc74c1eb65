package mockidp

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	// development server, cross-origin pages are expected
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleConversationFeed streams lifecycle events of one conversation
// as JSON frames: approved, reset_requested, completed. Dashboards and
// tests use it to observe a flow without polling.
func (s *Server) handleConversationFeed(c echo.Context) error {
	conv := s.convs.get(c.Param("thid"))
	if conv == nil {
		return c.NoContent(http.StatusNotFound)
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	conv.attachFeed(ws)
	slog.Debug("feed attached", "thid", conv.thid)

	// drain control frames until the peer goes away; writes happen
	// on broadcast
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				ws.Close()
				return
			}
		}
	}()
	return nil
}
