// Package draw implements the paint board operations on top of a shared
// connection and listener registry.
package draw

import (
	"errors"

	"paintboard/internal/protocol"
	"paintboard/internal/registry"
)

var (
	// ErrTimeout is delivered when no reply arrived before the request deadline
	ErrTimeout = errors.New("draw: request timed out")
	// ErrSuperseded is delivered when a newer request of the same kind replaced
	// this one before its reply arrived
	ErrSuperseded = errors.New("draw: request superseded")
	// ErrClosed is delivered to requests still outstanding when the controller
	// is closed, and returned by operations on a closed controller
	ErrClosed = errors.New("draw: controller closed")
)

// Dispatcher is the connection the controller talks through
type Dispatcher interface {
	// Send hands msg to the connection and reports whether it was accepted
	Send(msg protocol.Message) bool
	// Connect establishes the connection. Calling it while connected is a no-op.
	Connect() error
}

// Session is the process-wide state shared by every controller: one
// registry and the one connection that feeds it.
type Session struct {
	Registry *registry.Registry
	Conn     Dispatcher
}
