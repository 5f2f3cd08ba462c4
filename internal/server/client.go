package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"paintboard/internal/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client represents a connected WebSocket client
type Client struct {
	ID      string
	Conn    *websocket.Conn
	Room    *Room
	Send    chan []byte
	limiter *rate.Limiter
	logger  *zap.Logger
	closed  bool
	mu      sync.Mutex
}

// enqueue hands msg to the write pump, dropping it when the client is gone
// or too slow
func (c *Client) enqueue(msg []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- msg:
	default:
		c.logger.Warn("send buffer full, dropping message")
	}
}

// reply encodes msg and queues it for this client only
func (c *Client) reply(msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		c.logger.Error("cannot encode reply", zap.Stringer("opCode", msg.OpCode()), zap.Error(err))
		return
	}
	c.enqueue(data)
}

// writePump pumps messages from the Send channel to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump pumps messages from the WebSocket connection to the handler
func (c *Client) readPump(s *Server) {
	defer func() {
		c.mu.Lock()
		c.closed = true
		close(c.Send)
		c.mu.Unlock()

		c.Room.RemoveClient(c)
		c.Conn.Close()
		c.logger.Info("client left")
	}()

	c.Conn.SetReadLimit(s.opts.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket error", zap.Error(err))
			}
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			c.logger.Warn("dropping malformed message", zap.Error(err))
			continue
		}

		if !c.limiter.Allow() {
			c.logger.Warn("rate limit exceeded", zap.Stringer("opCode", msg.OpCode()))
			s.reject(c, msg)
			continue
		}

		s.handle(c, msg)
	}
}
