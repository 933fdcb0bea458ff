package websocket

import (
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Handler struct {
	room     *Room
	hub      *Hub
	upgrader websocket.Upgrader
	client   ClientOptions
	maxFrame int64
	logger   *zap.SugaredLogger
}

func NewHandler(room *Room, hub *Hub, origins *OriginPolicy, client ClientOptions, maxFileSize int64, logger *zap.Logger) *Handler {
	return &Handler{
		room: room,
		hub:  hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.Check,
		},
		client:   client,
		maxFrame: readLimit(maxFileSize),
		logger:   logger.Sugar(),
	}
}

func (h *Handler) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warnw("Failed to upgrade connection",
			"client_ip", c.ClientIP(),
			"origin", c.GetHeader("Origin"),
			"error", err,
		)
		return
	}

	client := newClient(conn, c.ClientIP(), h.client, h.logger)

	h.logger.Infow("WebSocket connection established",
		"client_id", client.ID,
		"client_ip", c.ClientIP(),
		"user_agent", c.GetHeader("User-Agent"),
	)

	if !h.room.OnConnect(client) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	doneWrite := h.hub.track()
	go func() {
		defer doneWrite()
		client.writePump()
	}()

	doneRead := h.hub.track()
	defer doneRead()
	client.readPump(h.room, h.maxFrame)
}
