package relay

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ConnectionID identifies a connection in the hub registry
type ConnectionID string

// Connection is the relay's record of one live client
type Connection struct {
	ID          ConnectionID
	UserID      uuid.UUID
	RoomID      uuid.NullUUID
	ConnectedAt time.Time

	ws   *websocket.Conn
	send chan []byte
	hub  *Hub

	// Owned by the hub loop
	sendClosed bool
}

func newConnection(hub *Hub, ws *websocket.Conn, userID uuid.UUID, roomID uuid.NullUUID) *Connection {
	return &Connection{
		ID:          ConnectionID(uuid.NewString()),
		UserID:      userID,
		RoomID:      roomID,
		ConnectedAt: time.Now(),
		ws:          ws,
		send:        make(chan []byte, hub.config.SendBufferSize),
		hub:         hub,
	}
}

// enqueue queues a frame without blocking. Called from the hub loop only.
func (c *Connection) enqueue(data []byte) bool {
	if c.sendClosed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// closeSend closes the send queue once. Called from the hub loop only.
func (c *Connection) closeSend() {
	if c.sendClosed {
		return
	}
	c.sendClosed = true
	close(c.send)
}

// writePump drains the send queue to the socket and keeps the peer alive with pings
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if !ok {
				// Evicted by the hub
				c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", string(c.ID)).
					Msg("failed to write message to WebSocket")
				c.hub.unregister(c, "write_error")
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", string(c.ID)).
					Msg("failed to send ping")
				c.hub.unregister(c, "ping_error")
				return
			}
		}
	}
}

// readPump forwards every inbound frame to the hub loop
func (c *Connection) readPump() {
	reason := "closed"
	defer func() {
		c.hub.unregister(c, reason)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(c.hub.config.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
		return nil
	})

	for {
		msgType, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", string(c.ID)).
					Msg("unexpected WebSocket close error")
				reason = "read_error"
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))

		if msgType != websocket.TextMessage {
			log.Debug().Str("connection_id", string(c.ID)).Msg("ignoring non-text frame")
			continue
		}
		if !c.hub.submit(c, message) {
			return
		}
	}
}
