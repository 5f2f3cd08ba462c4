package registry

import (
	"sync"

	"paintboard/internal/protocol"
)

// OpCodeListener matches messages by opcode and hands them to a callback
type OpCodeListener struct {
	op       protocol.OpCode
	fn       func(protocol.Message)
	onExpire func()
	oneShot  bool

	expireOnce sync.Once
}

// OneShot returns a listener that handles the first message with opcode op
// and is then removed. onExpire may be nil.
func OneShot(op protocol.OpCode, fn func(protocol.Message), onExpire func()) *OpCodeListener {
	return &OpCodeListener{op: op, fn: fn, onExpire: onExpire, oneShot: true}
}

// Persistent returns a listener that handles every message with opcode op
// until it is removed.
func Persistent(op protocol.OpCode, fn func(protocol.Message)) *OpCodeListener {
	return &OpCodeListener{op: op, fn: fn}
}

// OpCode returns the opcode the listener matches
func (l *OpCodeListener) OpCode() protocol.OpCode {
	return l.op
}

func (l *OpCodeListener) Matches(msg protocol.Message) bool {
	return msg.OpCode() == l.op
}

func (l *OpCodeListener) OnMatch(msg protocol.Message) bool {
	if l.fn != nil {
		l.fn(msg)
	}
	return !l.oneShot
}

func (l *OpCodeListener) OnExpire() {
	if l.onExpire == nil {
		return
	}
	l.expireOnce.Do(l.onExpire)
}
