package api

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ilievs/pinhub/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 64 * 1024
)

// AppConn is one app websocket. It receives fan-out events as binary
// protocol frames.
type AppConn struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	log  *slog.Logger

	closeOnce sync.Once
	closed    atomic.Bool
}

func newAppConn(conn *websocket.Conn, queueSize int, log *slog.Logger) *AppConn {
	return &AppConn{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, queueSize),
		log:  log,
	}
}

func (c *AppConn) ID() string {
	return c.id
}

// Send encodes f and queues it. It returns false when the connection is
// closed or its buffer is full.
func (c *AppConn) Send(f protocol.Frame) bool {
	data, err := protocol.Encode(f)
	if err != nil {
		c.log.Warn("failed to encode frame for app", "app", c.id, "error", err)
		return false
	}
	return c.SafeSend(data)
}

// SafeSend queues data without blocking or panicking on a closed channel.
func (c *AppConn) SafeSend(data []byte) (sent bool) {
	// Close may run between the closed check and the send.
	defer func() {
		if r := recover(); r != nil {
			sent = false
		}
	}()

	if c.closed.Load() {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close closes the send channel exactly once, which ends writePump.
func (c *AppConn) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.send)
	})
}

// readPump answers pings from the app until the connection fails.
func (c *AppConn) readPump() {
	defer func() {
		c.Close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("app read error", "app", c.id, "error", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		f, err := protocol.Decode(data)
		if err != nil {
			c.log.Debug("malformed frame from app", "app", c.id, "error", err)
			continue
		}
		if f.Command == protocol.Ping {
			c.Send(protocol.OKFrame(f.ID))
			continue
		}
		c.Send(protocol.IllegalCommandFrame(f.ID))
	}
}

func (c *AppConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
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
