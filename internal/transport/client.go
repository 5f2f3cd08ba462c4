// Package transport carries protocol messages over a websocket connection
// to the paint board server.
package transport

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"paintboard/internal/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	defaultMaxMessageSize = 1 << 20
	defaultQueueSize      = 256
)

// ErrClientClosed is returned by Connect after Close
var ErrClientClosed = errors.New("transport: client closed")

// Sink receives every decoded inbound message
type Sink interface {
	Dispatch(msg protocol.Message) int
}

// Client is a reconnectable websocket connection to one room. Send and
// Connect are safe for concurrent use.
type Client struct {
	url            string
	dialer         *websocket.Dialer
	sink           Sink
	logger         *zap.Logger
	maxMessageSize int64
	queueSize      int

	// connectMu serializes Connect so only one dial is in flight
	connectMu sync.Mutex

	mu     sync.Mutex
	cur    *conn
	closed bool
}

// Option configures a Client
type Option func(*Client)

// WithDialer replaces websocket.DefaultDialer
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithMaxMessageSize limits the size of inbound frames
func WithMaxMessageSize(n int64) Option {
	return func(c *Client) { c.maxMessageSize = n }
}

// WithQueueSize sets how many outbound messages may wait for the writer
func WithQueueSize(n int) Option {
	return func(c *Client) { c.queueSize = n }
}

// NewClient returns a Client for roomID on serverURL, e.g. ws://localhost:8080.
// It does not connect.
func NewClient(serverURL string, roomID int, sink Sink, logger *zap.Logger, opts ...Option) (*Client, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u = u.JoinPath("ws", strconv.Itoa(roomID))

	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		url:            u.String(),
		dialer:         websocket.DefaultDialer,
		sink:           sink,
		logger:         logger.With(zap.String("component", "transport"), zap.Int("roomId", roomID)),
		maxMessageSize: defaultMaxMessageSize,
		queueSize:      defaultQueueSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// URL returns the websocket endpoint the client dials
func (c *Client) URL() string {
	return c.url
}

// Connect dials the server unless a connection is already open. Send and
// Connected do not wait for a dial in progress.
func (c *Client) Connect() error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	c.mu.Lock()
	closed, open := c.closed, c.cur != nil
	c.mu.Unlock()
	if closed {
		return ErrClientClosed
	}
	if open {
		return nil
	}

	ws, _, err := c.dialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		ws.Close()
		return ErrClientClosed
	}
	cn := &conn{
		ws:   ws,
		send: make(chan []byte, c.queueSize),
		done: make(chan struct{}),
	}
	c.cur = cn
	c.mu.Unlock()

	go c.writePump(cn)
	go c.readPump(cn)

	c.logger.Info("connected", zap.String("url", c.url))
	return nil
}

// Connected reports whether a connection is open
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur != nil
}

// Send queues msg for the writer. It returns false when not connected, when
// msg cannot be encoded or when the outbound queue is full.
func (c *Client) Send(msg protocol.Message) bool {
	c.mu.Lock()
	cn := c.cur
	c.mu.Unlock()

	if cn == nil {
		return false
	}
	data, err := protocol.Encode(msg)
	if err != nil {
		c.logger.Warn("cannot encode message", zap.Stringer("opCode", msg.OpCode()), zap.Error(err))
		return false
	}

	select {
	case <-cn.done:
		return false
	default:
	}
	select {
	case cn.send <- data:
		return true
	default:
		c.logger.Warn("outbound queue full", zap.Stringer("opCode", msg.OpCode()))
		return false
	}
}

// Close shuts the connection down. The client cannot be reconnected.
func (c *Client) Close() error {
	c.mu.Lock()
	cn := c.cur
	c.cur = nil
	c.closed = true
	c.mu.Unlock()

	if cn != nil {
		cn.stop()
		<-cn.done
	}
	return nil
}

// conn is one dialed websocket with its pumps
type conn struct {
	ws       *websocket.Conn
	send     chan []byte
	done     chan struct{}
	stopOnce sync.Once
}

func (cn *conn) stop() {
	cn.stopOnce.Do(func() {
		closing := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		cn.ws.WriteControl(websocket.CloseMessage, closing, time.Now().Add(writeWait))
		cn.ws.Close()
	})
}

func (c *Client) readPump(cn *conn) {
	defer func() {
		cn.stop()
		c.mu.Lock()
		if c.cur == cn {
			c.cur = nil
		}
		c.mu.Unlock()
		close(cn.done)
	}()

	cn.ws.SetReadLimit(c.maxMessageSize)
	cn.ws.SetReadDeadline(time.Now().Add(pongWait))
	cn.ws.SetPongHandler(func(string) error {
		cn.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := cn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("read error", zap.Error(err))
			}
			c.logger.Info("disconnected")
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			c.logger.Warn("dropping malformed message", zap.Error(err))
			continue
		}
		if c.sink.Dispatch(msg) == 0 {
			c.logger.Debug("unmatched message",
				zap.Stringer("opCode", msg.OpCode()),
				zap.Int64("timestamp", msg.Timestamp()))
		}
	}
}

func (c *Client) writePump(cn *conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cn.ws.Close()
	}()

	for {
		select {
		case <-cn.done:
			return
		case data := <-cn.send:
			cn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cn.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Warn("write error", zap.Error(err))
				return
			}
		case <-ticker.C:
			cn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cn.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
