package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/rihlaapp/rihla-backend/internal/services"
)

// WebSocketHandler upgrades the connection and attaches the client to
// the notification hub. Auth runs through the usual middleware; the
// token arrives as a query parameter since browsers cannot set headers
// on websocket upgrades.
func WebSocketHandler(hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		services.HandleWebSocket(hub, c.Writer, c.Request, currentUserID(c), c.GetString("role"))
	}
}
