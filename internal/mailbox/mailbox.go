// Package mailbox runs posted callbacks one at a time on a dedicated
// goroutine, in the order they were posted.
package mailbox

import (
	"sync"

	"go.uber.org/zap"
)

// Mailbox is an unbounded FIFO of callbacks drained by a single goroutine
type Mailbox struct {
	mu     sync.Mutex
	queue  []func()
	closed bool

	wake chan struct{}
	done chan struct{}

	logger *zap.Logger
}

// New starts a Mailbox. Close must be called to stop its goroutine.
func New(logger *zap.Logger) *Mailbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Mailbox{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logger.With(zap.String("component", "mailbox")),
	}
	go m.loop()
	return m
}

// Post queues fn. It returns false when the mailbox is closed.
func (m *Mailbox) Post(fn func()) bool {
	if fn == nil {
		return false
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, fn)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
	return true
}

// Close stops accepting callbacks, runs the ones already queued and waits
// for the goroutine to exit. Close must not be called from a callback.
func (m *Mailbox) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		<-m.done
		return
	}
	m.closed = true
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
	<-m.done
}

func (m *Mailbox) loop() {
	defer close(m.done)

	for range m.wake {
		for {
			m.mu.Lock()
			if len(m.queue) == 0 {
				closed := m.closed
				m.mu.Unlock()
				if closed {
					return
				}
				break
			}
			fn := m.queue[0]
			m.queue[0] = nil
			m.queue = m.queue[1:]
			m.mu.Unlock()

			m.run(fn)
		}
	}
}

func (m *Mailbox) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("callback panicked", zap.Any("panic", r))
		}
	}()
	fn()
}
