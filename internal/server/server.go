// Package server is the paint board peer: it keeps each room's strokes and
// background picture and answers the opcode protocol over websockets.
package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"paintboard/internal/protocol"
)

// Options tunes limits applied to every connection
type Options struct {
	// MaxMessageSize limits inbound websocket frames
	MaxMessageSize int64
	// MaxUploadSize limits background picture uploads
	MaxUploadSize int64
	// RateLimit is the sustained number of requests per second per connection
	RateLimit float64
	RateBurst int
	// SendBuffer is the number of outbound messages queued per connection
	SendBuffer int
}

// DefaultOptions returns the limits used when a field is left zero
func DefaultOptions() Options {
	return Options{
		MaxMessageSize: 1 << 20,
		MaxUploadSize:  8 << 20,
		RateLimit:      10,
		RateBurst:      20,
		SendBuffer:     256,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = d.MaxMessageSize
	}
	if o.MaxUploadSize <= 0 {
		o.MaxUploadSize = d.MaxUploadSize
	}
	if o.RateLimit <= 0 {
		o.RateLimit = d.RateLimit
	}
	if o.RateBurst <= 0 {
		o.RateBurst = d.RateBurst
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = d.SendBuffer
	}
	return o
}

// Server serves the websocket endpoint and the picture upload routes
type Server struct {
	hub      *Hub
	opts     Options
	logger   *zap.Logger
	upgrader websocket.Upgrader
	clock    func() time.Time
}

// New returns a Server with an empty hub
func New(opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		hub:    NewHub(),
		opts:   opts.withDefaults(),
		logger: logger.With(zap.String("component", "server")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins, clients are not browsers
			},
		},
		clock: time.Now,
	}
}

// Router builds the gin engine with every route registered
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.hub.Stats())
	})

	// WebSocket endpoint
	r.GET("/ws/:roomId", s.handleWebSocket)

	rooms := r.Group("/rooms/:roomId")
	rooms.POST("/background", s.handleUploadBackground)
	rooms.GET("/background", s.handleGetBackground)

	return r
}

func roomParam(c *gin.Context) (int, bool) {
	roomID, err := strconv.Atoi(c.Param("roomId"))
	if err != nil || roomID < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return 0, false
	}
	return roomID, true
}

func (s *Server) handleWebSocket(c *gin.Context) {
	roomID, ok := roomParam(c)
	if !ok {
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade error", zap.Error(err))
		return
	}

	room := s.hub.GetOrCreateRoom(roomID)
	id := uuid.NewString()
	client := &Client{
		ID:      id,
		Conn:    conn,
		Room:    room,
		Send:    make(chan []byte, s.opts.SendBuffer),
		limiter: rate.NewLimiter(rate.Limit(s.opts.RateLimit), s.opts.RateBurst),
		logger:  s.logger.With(zap.String("clientId", id), zap.Int("roomId", roomID)),
	}

	room.AddClient(client)
	client.logger.Info("client joined")

	// Start pumps
	go client.writePump()
	client.readPump(s)
}

func (s *Server) handleUploadBackground(c *gin.Context) {
	roomID, ok := roomParam(c)
	if !ok {
		return
	}

	body := http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadSize)
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "picture too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read picture"})
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty picture"})
		return
	}

	contentType := c.ContentType()
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	room := s.hub.GetOrCreateRoom(roomID)
	room.SetBackground(&Picture{ContentType: contentType, Data: data})
	s.logger.Info("background picture updated",
		zap.Int("roomId", roomID), zap.Int("bytes", len(data)), zap.String("contentType", contentType))

	push, err := protocol.NewMessage(protocol.OpBgPicPush, s.now().UnixMilli(), roomID, backgroundPath(roomID))
	if err != nil {
		s.logger.Error("cannot build background push", zap.Error(err))
	} else {
		s.broadcast(room, push, nil)
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) handleGetBackground(c *gin.Context) {
	roomID, ok := roomParam(c)
	if !ok {
		return
	}

	room, exists := s.hub.Room(roomID)
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "no background picture"})
		return
	}
	pic := room.GetBackground()
	if pic == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no background picture"})
		return
	}
	c.Data(http.StatusOK, pic.ContentType, pic.Data)
}
