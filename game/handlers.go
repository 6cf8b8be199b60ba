package game

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
)

var errSendBufferFull = errors.New("send buffer full")

// wsConn adapts a gorilla websocket to the Conn interface. All frames written
// by the core go through a buffered channel drained by a single write pump,
// so fanout from the hub never blocks on a slow socket; a full buffer drops
// the frame with an error the hub logs.
type wsConn struct {
	socket *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	reason string
}

func newWSConn(socket *websocket.Conn) *wsConn {
	return &wsConn{
		socket: socket,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
}

func (c *wsConn) Write(data []byte) error {
	select {
	case <-c.done:
		return websocket.ErrCloseSent
	case c.send <- data:
		return nil
	default:
		return errSendBufferFull
	}
}

func (c *wsConn) Close(reason string) {
	c.once.Do(func() {
		c.reason = reason
		close(c.done)
	})
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.socket.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			c.socket.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, c.reason))
			return
		}
	}
}

// Handler mounts the coordination server on a gin engine.
type Handler struct {
	hub      *Hub
	registry *Registry
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, registry *Registry, log zerolog.Logger) *Handler {
	return &Handler{
		hub:      hub,
		registry: registry,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Origin policy is enforced by the CORS middleware upstream.
				return true
			},
		},
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws", h.ConnectHandler)
	r.GET("/rooms", h.PublicRoomsHandler)
	r.GET("/stats", h.StatsHandler)
}

// ConnectHandler upgrades the request and runs the connection's read loop in
// place; the write pump gets its own goroutine. When the read loop ends for
// any reason the session is detached from its room.
func (h *Handler) ConnectHandler(ctx *gin.Context) {
	socket, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("ip", ctx.ClientIP()).Msg("ws upgrade failed")
		return
	}

	conn := newWSConn(socket)
	go conn.writePump()

	sess := h.hub.Open(conn)
	defer func() {
		h.hub.HandleClose(sess)
		conn.Close("")
	}()

	socket.SetReadLimit(maxMessageSize)
	socket.SetReadDeadline(time.Now().Add(pongWait))
	socket.SetPongHandler(func(string) error {
		socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				h.log.Warn().Err(err).Str("client", sess.ClientID).Msg("ws read error")
			}
			return
		}
		h.hub.HandleMessage(sess, data)
	}
}

// PublicRoomsHandler lists rooms whose visibility setting is public.
func (h *Handler) PublicRoomsHandler(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"rooms": h.registry.PublicListings()})
}

func (h *Handler) StatsHandler(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"rooms":    h.registry.Count(),
		"sessions": h.hub.SessionCount(),
	})
}
