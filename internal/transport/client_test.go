package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paintboard/internal/protocol"
)

type recordingSink struct {
	mu   sync.Mutex
	msgs []protocol.Message
}

func (s *recordingSink) Dispatch(msg protocol.Message) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return 1
}

func (s *recordingSink) Messages() []protocol.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

// echoServer answers every frame with the same frame, after first sending a
// malformed one. kick closes every open connection.
type echoServer struct {
	*httptest.Server
	upgrades atomic.Int32
	paths    chan string

	mu    sync.Mutex
	conns []*websocket.Conn
}

func newEchoServer(t *testing.T) *echoServer {
	t.Helper()
	s := &echoServer{paths: make(chan string, 8)}
	upgrader := websocket.Upgrader{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.upgrades.Add(1)
		s.paths <- r.URL.Path
		s.mu.Lock()
		s.conns = append(s.conns, ws)
		s.mu.Unlock()

		defer ws.Close()
		ws.WriteMessage(websocket.TextMessage, []byte("{not json"))
		for {
			mt, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if err := ws.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *echoServer) kick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ws := range s.conns {
		ws.Close()
	}
	s.conns = nil
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestNewClient_URL(t *testing.T) {
	c, err := NewClient("http://example.com:8080", 12, &recordingSink{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ws://example.com:8080/ws/12", c.URL())

	_, err = NewClient("ftp://example.com", 1, &recordingSink{}, nil)
	assert.Error(t, err)
}

func TestClient_SendBeforeConnect(t *testing.T) {
	c, err := NewClient("ws://127.0.0.1:1", 1, &recordingSink{}, nil)
	require.NoError(t, err)

	msg, err := protocol.NewClearDraw(1)
	require.NoError(t, err)
	assert.False(t, c.Send(msg))
}

func TestClient_ConnectFailure(t *testing.T) {
	srv := newEchoServer(t)
	url := wsURL(srv.Server)
	srv.Close()

	c, err := NewClient(url, 1, &recordingSink{}, nil)
	require.NoError(t, err)
	assert.Error(t, c.Connect())
	assert.False(t, c.Connected())
}

func TestClient_RoundTrip(t *testing.T) {
	srv := newEchoServer(t)
	sink := &recordingSink{}

	c, err := NewClient(wsURL(srv.Server), 5, sink, nil)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Connect())
	require.NoError(t, c.Connect())
	assert.Equal(t, int32(1), srv.upgrades.Load(), "connect is idempotent")
	assert.Equal(t, "/ws/5", <-srv.paths)

	line := protocol.Line{Points: []protocol.Point{{X: 1, Y: 1}}, Color: 3, StrokeWidth: 2, CanvasWidth: 4, CanvasHeight: 4}
	msg, err := protocol.NewDrawMessage(99, 5, line)
	require.NoError(t, err)
	require.True(t, c.Send(msg))

	require.Eventually(t, func() bool { return len(sink.Messages()) == 1 }, 2*time.Second, 10*time.Millisecond,
		"malformed frame is dropped, echo is dispatched")

	got := sink.Messages()[0]
	assert.Equal(t, protocol.OpDraw, got.OpCode())
	assert.Equal(t, int64(99), got.Timestamp())
	_, gotLine, err := protocol.DecodeDraw(got)
	require.NoError(t, err)
	assert.Equal(t, line, gotLine)
}

func TestClient_ReconnectAfterServerDrop(t *testing.T) {
	srv := newEchoServer(t)

	c, err := NewClient(wsURL(srv.Server), 1, &recordingSink{}, nil)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Connect())
	srv.kick()

	require.Eventually(t, func() bool { return !c.Connected() }, 2*time.Second, 10*time.Millisecond)

	msg, err := protocol.NewClearDraw(1)
	require.NoError(t, err)
	assert.False(t, c.Send(msg))

	require.NoError(t, c.Connect())
	assert.True(t, c.Connected())
	assert.Equal(t, int32(2), srv.upgrades.Load())
}

func TestClient_Close(t *testing.T) {
	srv := newEchoServer(t)

	c, err := NewClient(wsURL(srv.Server), 1, &recordingSink{}, nil)
	require.NoError(t, err)
	require.NoError(t, c.Connect())

	require.NoError(t, c.Close())
	assert.False(t, c.Connected())
	assert.ErrorIs(t, c.Connect(), ErrClientClosed)
	assert.NoError(t, c.Close())
}

func TestClient_SendDoesNotWaitForDial(t *testing.T) {
	entered, release := make(chan struct{}), make(chan struct{})
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c, err := NewClient(wsURL(srv), 1, &recordingSink{}, nil)
	require.NoError(t, err)

	connected := make(chan error, 1)
	go func() { connected <- c.Connect() }()
	<-entered

	msg, err := protocol.NewClearDraw(1)
	require.NoError(t, err)
	idle := make(chan bool, 1)
	go func() { idle <- !c.Send(msg) && !c.Connected() }()

	select {
	case ok := <-idle:
		assert.True(t, ok, "not connected while the dial is in flight")
	case <-time.After(time.Second):
		t.Fatal("send blocked behind an in-flight dial")
	}

	require.NoError(t, c.Close())
	close(release)
	assert.ErrorIs(t, <-connected, ErrClientClosed)
	assert.False(t, c.Connected())
}
