// internal/handlers/events/events_handler.go
package events

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	gws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"postflow-service/internal/pkg/response"
	ws "postflow-service/internal/websocket"
)

var upgrader = gws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type EventsHandler struct {
	hub    *ws.Hub
	logger *zap.Logger
}

func NewEventsHandler(hub *ws.Hub, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{hub: hub, logger: logger}
}

// HandleConnection upgrades the request and streams lifecycle events.
// ?campaign_id=N narrows the stream to one campaign; omitted means all.
func (h *EventsHandler) HandleConnection(c *gin.Context) {
	var campaignID int64
	if raw := c.Query("campaign_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.ValidationError(c, "invalid campaign_id", err)
			return
		}
		campaignID = id
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	client := ws.NewClient(h.hub, conn, campaignID)
	go client.Serve()
}
