package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paintboard/internal/protocol"
)

func msg(t *testing.T, op protocol.OpCode, payload ...any) protocol.Message {
	t.Helper()
	m, err := protocol.NewMessage(op, time.Now().UnixMilli(), payload...)
	require.NoError(t, err)
	return m
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestDispatch_OneShotDrawReply(t *testing.T) {
	r := New(nil)

	var got []protocol.Message
	r.Register(OneShot(protocol.OpDraw, func(m protocol.Message) { got = append(got, m) }, nil))
	require.Equal(t, 1, r.Len())

	reply := msg(t, protocol.OpDraw, 7)
	assert.Equal(t, 1, r.Dispatch(reply))
	assert.Equal(t, 0, r.Len())
	require.Len(t, got, 1)

	status, err := got[0].Int(0)
	require.NoError(t, err)
	assert.Equal(t, 7, status)

	assert.Equal(t, 0, r.Dispatch(reply), "one-shot listener fires at most once")
	assert.Len(t, got, 1)
}

func TestDispatch_PersistentSurvives(t *testing.T) {
	r := New(nil)

	calls := 0
	r.Register(Persistent(protocol.OpClearDrawPush, func(protocol.Message) { calls++ }))

	for i := 0; i < 3; i++ {
		assert.Equal(t, 1, r.Dispatch(msg(t, protocol.OpClearDrawPush, 4)))
	}
	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, r.Len())
}

func TestDispatch_UnmatchedIsDropped(t *testing.T) {
	r := New(nil)
	r.Register(Persistent(protocol.OpDrawPush, func(protocol.Message) { t.Fatal("must not match") }))

	assert.NotPanics(t, func() {
		assert.Equal(t, 0, r.Dispatch(msg(t, protocol.OpBgPicPush, 1, "/pic.png")))
	})
	assert.Equal(t, 1, r.Len())
}

func TestDispatch_PublishesToAllInRegistrationOrder(t *testing.T) {
	r := New(nil)

	var order []string
	r.Register(Persistent(protocol.OpDrawPush, func(protocol.Message) { order = append(order, "a") }))
	r.Register(OneShot(protocol.OpDrawPush, func(protocol.Message) { order = append(order, "b") }, nil))
	r.Register(Persistent(protocol.OpClearDrawPush, func(protocol.Message) { order = append(order, "x") }))
	r.Register(Persistent(protocol.OpDrawPush, func(protocol.Message) { order = append(order, "c") }))

	assert.Equal(t, 3, r.Dispatch(msg(t, protocol.OpDrawPush)))
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, 3, r.Len())
}

func TestRegister_Twice(t *testing.T) {
	r := New(nil)
	l := Persistent(protocol.OpDraw, nil)

	r.Register(l)
	r.Register(l)
	assert.Equal(t, 1, r.Len())
}

func TestRemove_UnknownIsNoop(t *testing.T) {
	r := New(nil)
	r.Register(Persistent(protocol.OpDraw, nil))

	assert.NotPanics(t, func() {
		r.Remove(Persistent(protocol.OpDraw, nil))
		r.Remove(nil)
	})
	assert.Equal(t, 1, r.Len())
}

func TestDispatch_CallbackRemovesLaterListener(t *testing.T) {
	r := New(nil)

	second := Persistent(protocol.OpDrawPush, func(protocol.Message) { t.Fatal("removed listener invoked") })
	first := Persistent(protocol.OpDrawPush, func(protocol.Message) { r.Remove(second) })
	r.Register(first)
	r.Register(second)

	assert.Equal(t, 1, r.Dispatch(msg(t, protocol.OpDrawPush)))
	assert.Equal(t, 1, r.Len())
}

func TestDispatch_CallbackRegistersListener(t *testing.T) {
	r := New(nil)

	calls := 0
	late := Persistent(protocol.OpDrawPush, func(protocol.Message) { calls++ })
	r.Register(OneShot(protocol.OpDrawPush, func(protocol.Message) { r.Register(late) }, nil))

	assert.Equal(t, 1, r.Dispatch(msg(t, protocol.OpDrawPush)))
	assert.Equal(t, 0, calls, "listener registered during dispatch waits for the next message")

	assert.Equal(t, 1, r.Dispatch(msg(t, protocol.OpDrawPush)))
	assert.Equal(t, 1, calls)
}

func TestDispatch_OneShotReRegisteredFromCallback(t *testing.T) {
	r := New(nil)

	var l *OpCodeListener
	calls := 0
	l = OneShot(protocol.OpDraw, func(protocol.Message) {
		calls++
		if calls == 1 {
			r.Register(l)
		}
	}, nil)
	r.Register(l)

	r.Dispatch(msg(t, protocol.OpDraw, 0))
	assert.Equal(t, 0, r.Len())
}

func TestExpiry_LazyOnDispatch(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	r := New(nil, WithClock(clock.Now))

	expired := 0
	r.RegisterTimeout(OneShot(protocol.OpGetDrawList, func(protocol.Message) {
		t.Fatal("expired listener invoked")
	}, func() { expired++ }), time.Second)

	clock.Advance(2 * time.Second)
	assert.Equal(t, 0, r.Dispatch(msg(t, protocol.OpGetDrawList, 0, 0)))
	assert.Equal(t, 1, expired)
	assert.Equal(t, 0, r.Len())
}

func TestExpiry_Sweep(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	r := New(nil, WithClock(clock.Now))

	expired := 0
	r.RegisterTimeout(OneShot(protocol.OpDraw, nil, func() { expired++ }), time.Second)
	r.RegisterTimeout(OneShot(protocol.OpClearDraw, nil, nil), time.Minute)
	r.Register(Persistent(protocol.OpDrawPush, nil))

	assert.Equal(t, 0, r.Sweep())

	clock.Advance(time.Second)
	assert.Equal(t, 1, r.Sweep())
	assert.Equal(t, 1, expired)
	assert.Equal(t, 2, r.Len())
}

func TestRegisterUntil_UpdatesDeadlineInPlace(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	r := New(nil, WithClock(clock.Now))

	var order []string
	a := Persistent(protocol.OpDrawPush, func(protocol.Message) { order = append(order, "a") })
	b := Persistent(protocol.OpDrawPush, func(protocol.Message) { order = append(order, "b") })

	r.RegisterTimeout(a, time.Second)
	r.Register(b)
	r.Register(a)

	clock.Advance(time.Hour)
	assert.Equal(t, 0, r.Sweep())
	r.Dispatch(msg(t, protocol.OpDrawPush))
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestRun_SweepsUntilCancelled(t *testing.T) {
	r := New(nil)

	var expired atomic.Int32
	r.RegisterTimeout(OneShot(protocol.OpDraw, nil, func() { expired.Add(1) }), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return expired.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestDispatch_ConcurrentOneShotFiresOnce(t *testing.T) {
	r := New(nil)

	var calls atomic.Int32
	r.Register(OneShot(protocol.OpDraw, func(protocol.Message) { calls.Add(1) }, nil))

	reply := msg(t, protocol.OpDraw, 0)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Dispatch(reply)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 0, r.Len())
}

func TestSweep_WaitsForRunningDispatch(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	r := New(nil, WithClock(clock.Now))

	entered, release := make(chan struct{}), make(chan struct{})
	r.Register(Persistent(protocol.OpDraw, func(protocol.Message) {
		close(entered)
		<-release
	}))
	var matched, expired atomic.Int32
	r.RegisterTimeout(OneShot(protocol.OpDraw,
		func(protocol.Message) { matched.Add(1) },
		func() { expired.Add(1) }), time.Second)

	reply := msg(t, protocol.OpDraw, 0)
	dispatched := make(chan int, 1)
	go func() { dispatched <- r.Dispatch(reply) }()
	<-entered

	clock.Advance(time.Second)
	swept := make(chan int, 1)
	go func() { swept <- r.Sweep() }()

	assert.Never(t, func() bool { return len(swept) > 0 }, 50*time.Millisecond, 5*time.Millisecond,
		"sweep ran while a dispatch was in progress")
	close(release)

	assert.Equal(t, 2, <-dispatched)
	assert.Equal(t, 0, <-swept)
	assert.Equal(t, int32(1), matched.Load())
	assert.Equal(t, int32(0), expired.Load())
	assert.Equal(t, 1, r.Len())
}
