package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/fleetcab/cab-dispatch/internal/api/middleware"
	"github.com/fleetcab/cab-dispatch/internal/domain/rider"
	"github.com/fleetcab/cab-dispatch/internal/realtime"
	"github.com/fleetcab/cab-dispatch/pkg/logger"
)

// ServeWS handles GET /v1/ws and upgrades the connection into a realtime
// observer. The optional "audience" query parameter subscribes the client to
// an event partition; "operators" requires an admin token since that stream
// carries every trip request in the system.
func (h *Handlers) ServeWS(c *gin.Context) {
	audience := c.Query("audience")
	if audience == "operators" {
		token := c.Query("token")
		_, role, err := middleware.ParseToken(token, h.Config.JWT.Secret)
		if err != nil || role != rider.RoleAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "Operator stream requires an admin token"})
			return
		}
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  h.Config.WebSocket.ReadBufferSize,
		WriteBufferSize: h.Config.WebSocket.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Error("Failed to upgrade connection", logger.Err(err))
		return
	}

	client := realtime.NewClient(h.Hub, conn, audience, h.Logger)
	h.Hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
