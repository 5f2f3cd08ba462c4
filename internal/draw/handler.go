package draw

import (
	"paintboard/internal/mailbox"
	"paintboard/internal/protocol"
)

// Result is what a Handler receives: either the matched message or the
// reason none will arrive.
type Result struct {
	Op      protocol.OpCode
	Message protocol.Message
	Err     error
}

// Handler receives results. Handle is called on the connection's read
// goroutine, so implementations should hand work off quickly; see OnMailbox.
type Handler interface {
	Handle(Result)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(Result)

func (f HandlerFunc) Handle(r Result) { f(r) }

// OnMailbox returns a Handler that runs fn on box instead of the caller's
// goroutine. Results posted after box is closed are dropped.
func OnMailbox(box *mailbox.Mailbox, fn func(Result)) Handler {
	return HandlerFunc(func(r Result) {
		box.Post(func() { fn(r) })
	})
}

var discard = HandlerFunc(func(Result) {})
