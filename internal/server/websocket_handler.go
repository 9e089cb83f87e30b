package server

import (
	"net/http"

	"snapshoot-sync/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler upgrades GET /events and subscribes the connection to the hub.
type WebSocketHandler struct {
	hub    *Hub
	logger *logger.Logger
}

func NewWebSocketHandler(hub *Hub, l *logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, logger: l}
}

func (h *WebSocketHandler) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warnf("websocket upgrade failed: %s", err)
		return
	}
	h.hub.join(NewClient(h.hub, conn, uuid.NewString()))
}
