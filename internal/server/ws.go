package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleWebSocket upgrades the connection and hands it to the hub. The read
// loop exists to surface pongs and closes; clients never send business data.
func (a *api) handleWebSocket(c *gin.Context) {
	if a.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream is not running"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		return
	}

	id, err := a.hub.Register(conn)
	if err != nil {
		conn.Close()
		return
	}

	go func() {
		defer a.hub.Unregister(id)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
