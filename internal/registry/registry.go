// Package registry keeps the ordered set of listeners that inbound messages
// are dispatched to.
package registry

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"paintboard/internal/protocol"
)

// Listener receives inbound messages it matches. OnMatch reports whether the
// listener stays registered afterwards.
//
// Listener values are compared by interface equality, so implementations
// should be pointer types.
type Listener interface {
	Matches(msg protocol.Message) bool
	OnMatch(msg protocol.Message) (keep bool)
}

// Expirer is implemented by listeners that want to know when their deadline
// passed before a matching message arrived.
type Expirer interface {
	OnExpire()
}

type entry struct {
	listener Listener
	deadline time.Time
	removed  bool
}

// Registry is safe for concurrent use. Callbacks run without the registry
// lock held, so they may Register or Remove listeners. They must not call
// Dispatch or Sweep.
type Registry struct {
	// dispatchMu serializes whole dispatches
	dispatchMu sync.Mutex

	mu      sync.Mutex
	entries []*entry
	index   map[Listener]*entry

	now    func() time.Time
	logger *zap.Logger
}

// Option configures a Registry
type Option func(*Registry)

// WithClock replaces time.Now, used for deadlines
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New returns an empty Registry
func New(logger *zap.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		index:  make(map[Listener]*entry),
		now:    time.Now,
		logger: logger.With(zap.String("component", "registry")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds l without a deadline
func (r *Registry) Register(l Listener) {
	r.RegisterUntil(l, time.Time{})
}

// RegisterTimeout adds l with a deadline ttl from now. A non-positive ttl
// means no deadline.
func (r *Registry) RegisterTimeout(l Listener, ttl time.Duration) {
	var deadline time.Time
	if ttl > 0 {
		deadline = r.now().Add(ttl)
	}
	r.RegisterUntil(l, deadline)
}

// RegisterUntil adds l, evicting it once deadline passes. A zero deadline
// means the listener never expires. Registering a listener that is already
// present keeps its position and only updates the deadline.
func (r *Registry) RegisterUntil(l Listener, deadline time.Time) {
	if l == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.index[l]; ok {
		e.deadline = deadline
		return
	}
	e := &entry{listener: l, deadline: deadline}
	r.entries = append(r.entries, e)
	r.index[l] = e
}

// Remove drops l. Removing a listener that is not registered is a no-op.
func (r *Registry) Remove(l Listener) {
	if l == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(l)
}

func (r *Registry) removeLocked(l Listener) bool {
	e, ok := r.index[l]
	if !ok {
		return false
	}
	e.removed = true
	delete(r.index, l)
	for i, cur := range r.entries {
		if cur == e {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of registered listeners
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Dispatch offers msg to every registered listener in registration order and
// returns how many matched. A listener whose OnMatch returns false is removed
// before the next listener is evaluated. An unmatched message is not an error.
func (r *Registry) Dispatch(msg protocol.Message) int {
	r.dispatchMu.Lock()
	defer r.dispatchMu.Unlock()

	r.mu.Lock()
	expired := r.evictLocked(r.now())
	snapshot := make([]*entry, len(r.entries))
	copy(snapshot, r.entries)
	r.mu.Unlock()

	r.expire(expired)

	matched := 0
	for _, e := range snapshot {
		if r.isRemoved(e) {
			continue
		}
		if !e.listener.Matches(msg) {
			continue
		}
		matched++
		if keep := e.listener.OnMatch(msg); !keep {
			r.mu.Lock()
			// the callback may have re-registered a fresh entry for the same listener
			if cur, ok := r.index[e.listener]; ok && cur == e {
				r.removeLocked(e.listener)
			}
			r.mu.Unlock()
		}
	}

	return matched
}

func (r *Registry) isRemoved(e *entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return e.removed
}

// Sweep evicts every listener whose deadline has passed and returns how many
// were evicted. It waits for a running Dispatch, so a listener is never both
// matched and expired.
func (r *Registry) Sweep() int {
	r.dispatchMu.Lock()
	defer r.dispatchMu.Unlock()

	r.mu.Lock()
	expired := r.evictLocked(r.now())
	r.mu.Unlock()

	r.expire(expired)
	return len(expired)
}

// Run sweeps expired listeners every interval until ctx is done
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Debug("evicted expired listeners", zap.Int("count", n))
			}
		}
	}
}

func (r *Registry) evictLocked(now time.Time) []Listener {
	var expired []Listener
	kept := r.entries[:0]
	for _, e := range r.entries {
		if !e.deadline.IsZero() && !now.Before(e.deadline) {
			e.removed = true
			delete(r.index, e.listener)
			expired = append(expired, e.listener)
			continue
		}
		kept = append(kept, e)
	}
	// clear the tail so evicted entries can be collected
	for i := len(kept); i < len(r.entries); i++ {
		r.entries[i] = nil
	}
	r.entries = kept
	return expired
}

func (r *Registry) expire(listeners []Listener) {
	for _, l := range listeners {
		if ex, ok := l.(Expirer); ok {
			ex.OnExpire()
		}
	}
}
