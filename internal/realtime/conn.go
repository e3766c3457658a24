package realtime

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/askwave/liveqa/pkg/response"
)

const (
	// pingInterval and pongWait are the protocol-level keepalive settings.
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second

	// livenessProbe and livenessAck are the application-level heartbeat
	// exchanged as plain text frames; the probe is sent by clients and must
	// never reach JSON decoding.
	livenessProbe = "ping"
	livenessAck   = "pong"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// Conn represents a single WebSocket connection watching an event.
type Conn struct {
	ID      string
	EventID uuid.UUID
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	logger  *zap.Logger
}

// ServeWs handles GET /api/v1/ws/events/:id: upgrades the connection and
// runs the client loop until disconnect.
func ServeWs(hub *Hub, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.BadRequest(c, "invalid event id")
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		conn := &Conn{
			ID:      uuid.New().String(),
			EventID: eventID,
			hub:     hub,
			conn:    ws,
			send:    make(chan []byte, 256),
			logger:  logger,
		}
		hub.Register(conn)
		go conn.writePump()
		conn.readPump()
	}
}

func (c *Conn) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		// Clients only ever send the liveness probe; answer it and drop
		// anything else.
		if string(data) == livenessProbe {
			select {
			case c.send <- []byte(livenessAck):
			default:
			}
		}
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
