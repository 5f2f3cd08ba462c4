package draw

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"paintboard/internal/protocol"
	"paintboard/internal/registry"
)

// DefaultTimeout bounds how long a request waits for its reply
const DefaultTimeout = 30 * time.Second

// Controller issues paint board requests and manages push subscriptions.
// It keeps at most one outstanding request per opcode: a newer request of
// the same kind supersedes the older one.
type Controller struct {
	registry *registry.Registry
	conn     Dispatcher
	logger   *zap.Logger
	timeout  time.Duration
	now      func() time.Time

	mu      sync.Mutex
	closed  bool
	pending map[protocol.OpCode]*pending
	subs    map[protocol.OpCode]registry.Listener
}

// Option configures a Controller
type Option func(*Controller)

// WithTimeout sets the request timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// WithClock replaces time.Now, used for request timestamps
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// NewController returns a Controller bound to s
func NewController(s Session, logger *zap.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{
		registry: s.Registry,
		conn:     s.Conn,
		logger:   logger.With(zap.String("component", "draw")),
		timeout:  DefaultTimeout,
		now:      time.Now,
		pending:  make(map[protocol.OpCode]*pending),
		subs:     make(map[protocol.OpCode]registry.Listener),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendDraw sends one stroke to roomID. h receives the DRAW reply.
func (c *Controller) SendDraw(h Handler, timestamp int64, roomID int, line protocol.Line) bool {
	msg, err := protocol.NewDrawMessage(timestamp, roomID, line)
	if err != nil {
		c.logger.Warn("cannot encode draw request", zap.Int("roomId", roomID), zap.Error(err))
		return false
	}
	return c.request(msg, h)
}

// GetDrawList asks for every stroke of roomID. h receives the GET_DRAW_LIST
// reply; see protocol.DecodeDrawList.
func (c *Controller) GetDrawList(h Handler, timestamp int64, roomID int) bool {
	msg, err := protocol.NewGetDrawList(timestamp, roomID)
	if err != nil {
		c.logger.Warn("cannot encode draw list request", zap.Int("roomId", roomID), zap.Error(err))
		return false
	}
	return c.request(msg, h)
}

// AskUploadPic starts the background picture upload handshake. h receives
// the UPLOAD_PIC reply; see protocol.DecodeUploadPic.
func (c *Controller) AskUploadPic(h Handler) bool {
	msg, err := protocol.NewUploadPicAsk(c.now().UnixMilli())
	if err != nil {
		c.logger.Warn("cannot encode upload request", zap.Error(err))
		return false
	}
	return c.request(msg, h)
}

// ClearDraw clears the current room. h receives the CLEAR_DRAW reply.
func (c *Controller) ClearDraw(h Handler) bool {
	msg, err := protocol.NewClearDraw(c.now().UnixMilli())
	if err != nil {
		c.logger.Warn("cannot encode clear request", zap.Error(err))
		return false
	}
	return c.request(msg, h)
}

// SubscribeDraw delivers every DRAW_PUSH to h
func (c *Controller) SubscribeDraw(h Handler) error {
	return c.subscribe(protocol.OpDrawPush, h)
}

// SubscribeBackgroundPicture delivers every BG_PIC_PUSH to h
func (c *Controller) SubscribeBackgroundPicture(h Handler) error {
	return c.subscribe(protocol.OpBgPicPush, h)
}

// SubscribeClearDraw delivers every CLEAR_DRAW_PUSH to h
func (c *Controller) SubscribeClearDraw(h Handler) error {
	return c.subscribe(protocol.OpClearDrawPush, h)
}

// Unsubscribe removes the subscription for push opcode op, if any
func (c *Controller) Unsubscribe(op protocol.OpCode) {
	c.mu.Lock()
	l, ok := c.subs[op]
	delete(c.subs, op)
	c.mu.Unlock()

	if ok {
		c.registry.Remove(l)
	}
}

// Close removes every listener the controller registered. Outstanding
// requests receive ErrClosed.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	outstanding, subs := c.pending, c.subs
	c.pending = make(map[protocol.OpCode]*pending)
	c.subs = make(map[protocol.OpCode]registry.Listener)
	c.mu.Unlock()

	for _, l := range subs {
		c.registry.Remove(l)
	}
	for _, p := range outstanding {
		c.registry.Remove(p.listener)
		p.settle(Result{Op: p.op, Err: ErrClosed})
	}
}

func (c *Controller) request(msg protocol.Message, h Handler) bool {
	if h == nil {
		h = discard
	}
	p := c.newPending(msg.OpCode(), h)

	// the pending table and the registry change together under c.mu
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	prev := c.pending[p.op]
	c.pending[p.op] = p
	if prev != nil {
		c.registry.Remove(prev.listener)
	}
	c.registry.RegisterTimeout(p.listener, c.timeout)
	c.mu.Unlock()

	if prev != nil {
		prev.settle(Result{Op: prev.op, Err: ErrSuperseded})
		c.logger.Debug("superseded outstanding request", zap.Stringer("opCode", p.op))
	}

	if !c.conn.Send(msg) {
		// the listener stays until it times out or is superseded
		c.logger.Warn("send failed", zap.Stringer("opCode", p.op))
		return false
	}
	return true
}

func (c *Controller) subscribe(op protocol.OpCode, h Handler) error {
	if h == nil {
		h = discard
	}
	l := registry.Persistent(op, func(msg protocol.Message) {
		h.Handle(Result{Op: op, Message: msg})
	})

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if prev, ok := c.subs[op]; ok {
		c.registry.Remove(prev)
	}
	c.subs[op] = l
	c.mu.Unlock()

	err := c.conn.Connect()

	// Connect may block; a newer subscription, Unsubscribe or Close may have
	// run meanwhile, and then l must stay out of the registry
	c.mu.Lock()
	closed := c.closed
	current := !closed && c.subs[op] == l
	if current {
		c.registry.Register(l)
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("connect failed", zap.Stringer("opCode", op), zap.Error(err))
		return fmt.Errorf("subscribe %s: %w", op, err)
	}
	if closed {
		return ErrClosed
	}
	return nil
}

// forget drops p from the pending table if it is still the current request
func (c *Controller) forget(p *pending) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending[p.op] == p {
		delete(c.pending, p.op)
	}
}

// pending is an outstanding request. Its handler is called exactly once,
// with the reply or with the reason there is none.
type pending struct {
	op       protocol.OpCode
	handler  Handler
	listener *registry.OpCodeListener
	once     sync.Once
}

func (c *Controller) newPending(op protocol.OpCode, h Handler) *pending {
	p := &pending{op: op, handler: h}
	p.listener = registry.OneShot(op,
		func(msg protocol.Message) {
			c.forget(p)
			p.settle(Result{Op: op, Message: msg})
		},
		func() {
			c.forget(p)
			p.settle(Result{Op: op, Err: ErrTimeout})
		})
	return p
}

func (p *pending) settle(r Result) {
	p.once.Do(func() { p.handler.Handle(r) })
}
