package lifecycle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getlantern/netwatch/dispatch"
	"github.com/getlantern/netwatch/internal"
	"github.com/getlantern/netwatch/source"
)

// fakeSource emits whatever is pushed to values. A leaky fakeSource keeps emitting after being
// cancelled, which lets tests check that the manager itself stops delivery.
type fakeSource struct {
	values       chan int
	leaky        bool
	doneErr      error
	cancelErr    error
	cancelPanic  bool
	subscribeErr error

	kill chan struct{}

	subscribed atomic.Int32
	cancels    atomic.Int32
	running    atomic.Int32
}

func newFakeSource(t *testing.T) *fakeSource {
	f := &fakeSource{values: make(chan int, 64), kill: make(chan struct{})}
	t.Cleanup(func() { close(f.kill) })
	return f
}

func (f *fakeSource) Subscribe(sched dispatch.Scheduler, sink source.Sink[int]) (source.Handle, error) {
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	f.subscribed.Add(1)
	ctx, cancel := context.WithCancel(context.Background())
	stop := ctx.Done()
	if f.leaky {
		stop = nil
	}
	err := sched.Schedule(func() {
		f.running.Add(1)
		defer f.running.Add(-1)
		for {
			select {
			case <-stop:
				return
			case <-f.kill:
				return
			case v, ok := <-f.values:
				if !ok {
					sink.Done(f.doneErr)
					return
				}
				sink.Next(v)
			}
		}
	})
	if err != nil {
		cancel()
		return nil, err
	}
	return source.HandleFunc(func() error {
		f.cancels.Add(1)
		cancel()
		if f.cancelPanic {
			panic("cancel exploded")
		}
		return f.cancelErr
	}), nil
}

// collector records handler invocations.
type collector struct {
	mu        sync.Mutex
	values    []int
	errs      []error
	completed int
}

func (c *collector) next(v int) {
	c.mu.Lock()
	c.values = append(c.values, v)
	c.mu.Unlock()
}

func (c *collector) onError(err error) {
	c.mu.Lock()
	c.errs = append(c.errs, err)
	c.mu.Unlock()
}

func (c *collector) onComplete() {
	c.mu.Lock()
	c.completed++
	c.mu.Unlock()
}

func (c *collector) Values() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.values...)
}

func (c *collector) Errors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.errs...)
}

func (c *collector) Completed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed
}

func (c *collector) bind(name string, src source.Source[int]) Binding {
	return Bind(name, src, c.next, OnError(c.onError), OnComplete(c.onComplete))
}

type faultRecorder struct {
	mu     sync.Mutex
	faults []*HandlerFault
}

func (r *faultRecorder) ReportFault(f *HandlerFault) {
	r.mu.Lock()
	r.faults = append(r.faults, f)
	r.mu.Unlock()
}

func (r *faultRecorder) Faults() []*HandlerFault {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*HandlerFault(nil), r.faults...)
}

type harness struct {
	m        *Manager
	looper   *dispatch.Looper
	reporter *faultRecorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := internal.NoOpLogger()
	looper := dispatch.NewLooper(logger)
	looper.Start()
	pool := dispatch.NewPool(32, logger)
	reporter := &faultRecorder{}
	m, err := New(Options{
		Scheduler:  pool,
		Foreground: looper,
		Logger:     logger,
		Tag:        "test",
		Reporter:   reporter,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		m.Close()
		looper.Close()
		pool.Stop(time.Second)
	})
	return &harness{m: m, looper: looper, reporter: reporter}
}

// flush waits until the source has drained its queue and everything posted so far has run on
// the foreground.
func (h *harness) flush(t *testing.T, srcs ...*fakeSource) {
	t.Helper()
	for _, src := range srcs {
		require.Eventually(t, func() bool { return len(src.values) == 0 }, time.Second, time.Millisecond)
	}
	time.Sleep(5 * time.Millisecond)
	require.True(t, h.looper.Sync(func() {}))
}

func TestNew(t *testing.T) {
	_, err := New(Options{Foreground: dispatch.Inline{}})
	assert.Error(t, err)
	_, err = New(Options{Scheduler: dispatch.NewPool(1, internal.NoOpLogger())})
	assert.Error(t, err)
}

func TestNoDeliveryAfterDeactivate(t *testing.T) {
	h := newHarness(t)
	src := newFakeSource(t)
	src.leaky = true
	var c collector

	require.NoError(t, h.m.Activate(c.bind("connectivity", src)))
	src.values <- 1
	src.values <- 2
	require.Eventually(t, func() bool { return len(c.Values()) == 2 }, time.Second, time.Millisecond)

	require.NoError(t, h.m.Deactivate())
	src.values <- 3
	src.values <- 4
	h.flush(t, src)

	assert.Equal(t, []int{1, 2}, c.Values())
	assert.EqualValues(t, 1, src.cancels.Load())
}

func TestDeactivateIsIdempotent(t *testing.T) {
	h := newHarness(t)
	src := newFakeSource(t)
	var c collector

	require.NoError(t, h.m.Deactivate(), "deactivate before any activation")
	require.NoError(t, h.m.Activate(c.bind("signal-level", src)))
	for range 3 {
		assert.NoError(t, h.m.Deactivate())
	}
	assert.EqualValues(t, 1, src.cancels.Load())
	assert.Zero(t, h.m.ActiveCount())
}

func TestDeactivateIsolatesCancelFailures(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("cancel failed")
	a, b, c := newFakeSource(t), newFakeSource(t), newFakeSource(t)
	b.cancelErr = boom
	c.cancelPanic = true
	d := newFakeSource(t)
	var ca, cb, cc, cd collector

	require.NoError(t, h.m.Activate(
		ca.bind("a", a),
		cb.bind("b", b),
		cc.bind("c", c),
		cd.bind("d", d),
	))
	require.Equal(t, 4, h.m.ActiveCount())

	err := h.m.Deactivate()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "cancel panicked")
	for _, src := range []*fakeSource{a, b, c, d} {
		assert.EqualValues(t, 1, src.cancels.Load())
	}
	assert.Zero(t, h.m.ActiveCount())
	assert.NoError(t, h.m.Deactivate())
}

func TestPerSourceOrdering(t *testing.T) {
	h := newHarness(t)
	const n = 500
	src := source.Producer[int](func(ctx context.Context, emit func(int)) error {
		for i := 1; i <= n; i++ {
			emit(i)
		}
		return nil
	})
	var c collector

	require.NoError(t, h.m.Activate(c.bind("access-points", src)))
	require.Eventually(t, func() bool { return c.Completed() == 1 }, 2*time.Second, time.Millisecond)

	got := c.Values()
	require.Len(t, got, n)
	for i, v := range got {
		require.Equal(t, i+1, v)
	}
}

func TestSingleBindingInvariant(t *testing.T) {
	h := newHarness(t)
	var c1, c2, c3 collector
	s1, s2, s3 := newFakeSource(t), newFakeSource(t), newFakeSource(t)

	require.NoError(t, h.m.Activate(
		c1.bind("connectivity", s1),
		c2.bind("signal-level", s2),
		c3.bind("access-points", s3),
	))
	assert.Equal(t, 3, h.m.ActiveCount())
	assert.ErrorIs(t, h.m.Activate(c1.bind("connectivity", s1)), ErrAlreadyActive)
	assert.Equal(t, 3, h.m.ActiveCount())
	assert.EqualValues(t, 1, s1.subscribed.Load())

	require.NoError(t, h.m.Deactivate())
	assert.Zero(t, h.m.ActiveCount())
	assert.Empty(t, h.m.Subscriptions())
}

func TestReactivationCreatesFreshSubscriptions(t *testing.T) {
	h := newHarness(t)
	srcs := []*fakeSource{newFakeSource(t), newFakeSource(t), newFakeSource(t)}
	names := []string{"connectivity", "signal-level", "access-points"}
	cs := make([]collector, 3)
	bindings := func() []Binding {
		out := make([]Binding, 0, 3)
		for i := range srcs {
			out = append(out, cs[i].bind(names[i], srcs[i]))
		}
		return out
	}

	require.NoError(t, h.m.Activate(bindings()...))
	first := h.m.Subscriptions()
	require.Len(t, first, 3)
	srcs[0].values <- 7
	require.Eventually(t, func() bool { return len(cs[0].Values()) == 1 }, time.Second, time.Millisecond)
	require.NoError(t, h.m.Deactivate())
	require.Eventually(t, func() bool { return srcs[0].running.Load() == 0 }, time.Second, time.Millisecond)

	require.NoError(t, h.m.Activate(bindings()...))
	second := h.m.Subscriptions()
	require.Len(t, second, 3)
	assert.Equal(t, 3, h.m.ActiveCount())
	for i := range second {
		assert.NotEqual(t, first[i].ID, second[i].ID)
		assert.Equal(t, StateActive, second[i].State)
		assert.Zero(t, second[i].Delivered)
		assert.EqualValues(t, 2, srcs[i].subscribed.Load())
	}
	assert.Equal(t, []int{7}, cs[0].Values())
	assert.Empty(t, cs[1].Values())

	srcs[0].values <- 8
	require.Eventually(t, func() bool { return len(cs[0].Values()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, []int{7, 8}, cs[0].Values())
}

func TestActivateRejectsDuplicateNames(t *testing.T) {
	h := newHarness(t)
	var c collector
	s := newFakeSource(t)

	err := h.m.Activate(c.bind("connectivity", s), c.bind("connectivity", s))
	assert.ErrorIs(t, err, ErrDuplicateSource)
	assert.Zero(t, s.subscribed.Load())
	assert.Zero(t, h.m.ActiveCount())
}

func TestActivateAfterClose(t *testing.T) {
	h := newHarness(t)
	var c collector
	s := newFakeSource(t)
	require.NoError(t, h.m.Activate(c.bind("connectivity", s)))

	require.NoError(t, h.m.Close())
	require.NoError(t, h.m.Close())
	assert.EqualValues(t, 1, s.cancels.Load())
	assert.ErrorIs(t, h.m.Activate(c.bind("connectivity", s)), ErrClosed)
}

func TestSourceUnavailable(t *testing.T) {
	h := newHarness(t)
	denied := errors.New("location permission denied")
	broken := newFakeSource(t)
	broken.subscribeErr = denied
	healthy := newFakeSource(t)
	var cb, ch collector

	require.NoError(t, h.m.Activate(cb.bind("access-points", broken), ch.bind("connectivity", healthy)))
	require.Eventually(t, func() bool { return len(cb.Errors()) == 1 }, time.Second, time.Millisecond)

	err := cb.Errors()[0]
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.ErrorIs(t, err, denied)
	assert.Equal(t, 1, h.m.ActiveCount())

	healthy.values <- 1
	require.Eventually(t, func() bool { return len(ch.Values()) == 1 }, time.Second, time.Millisecond)
	assert.NoError(t, h.m.Deactivate())
}

func TestSourceUnavailableIsTerminatedBeforeActivateReturns(t *testing.T) {
	h := newHarness(t)
	broken := newFakeSource(t)
	broken.subscribeErr = errors.New("wifi disabled")
	healthy := newFakeSource(t)
	var cb, ch collector

	// hold the foreground so no error handler can run yet
	release := make(chan struct{})
	require.True(t, h.looper.Post(func() { <-release }))

	require.NoError(t, h.m.Activate(cb.bind("access-points", broken), ch.bind("connectivity", healthy)))
	assert.Equal(t, 1, h.m.ActiveCount())
	subs := h.m.Subscriptions()
	require.Len(t, subs, 2)
	assert.Equal(t, StateTerminated, subs[0].State)

	require.NoError(t, h.m.Deactivate())
	close(release)
	require.True(t, h.looper.Sync(func() {}))

	require.Len(t, cb.Errors(), 1)
	assert.ErrorIs(t, cb.Errors()[0], ErrSourceUnavailable)
	assert.Empty(t, ch.Errors())
}

func TestBackgroundErrorHandlerMayCallManager(t *testing.T) {
	h := newHarness(t)
	broken := newFakeSource(t)
	broken.subscribeErr = errors.New("no scanner")
	var active atomic.Int32
	active.Store(-1)
	var seen atomic.Int32

	done := make(chan error, 1)
	go func() {
		done <- h.m.Activate(Bind("access-points", broken, func(int) {},
			WithTarget(dispatch.Background),
			OnError(func(error) {
				active.Store(int32(h.m.ActiveCount()))
				seen.Store(int32(len(h.m.Subscriptions())))
			}),
		))
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Activate did not return")
	}
	assert.Zero(t, active.Load())
	assert.EqualValues(t, 1, seen.Load())
	assert.NoError(t, h.m.Deactivate())
}

func TestBusyPoolReportsSourceUnavailable(t *testing.T) {
	logger := internal.NoOpLogger()
	looper := dispatch.NewLooper(logger)
	looper.Start()
	pool := dispatch.NewPool(2, logger)
	m, err := New(Options{Scheduler: pool, Foreground: looper, Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() {
		m.Close()
		looper.Close()
		pool.Stop(time.Second)
	})

	srcs := []*fakeSource{newFakeSource(t), newFakeSource(t), newFakeSource(t)}
	cs := make([]collector, len(srcs))
	require.NoError(t, m.Activate(
		cs[0].bind("connectivity", srcs[0]),
		cs[1].bind("signal-level", srcs[1]),
		cs[2].bind("access-points", srcs[2]),
	))
	require.Eventually(t, func() bool { return len(cs[2].Errors()) == 1 }, time.Second, time.Millisecond)
	assert.ErrorIs(t, cs[2].Errors()[0], ErrSourceUnavailable)
	assert.ErrorIs(t, cs[2].Errors()[0], dispatch.ErrPoolFull)
	assert.Equal(t, 2, m.ActiveCount())

	srcs[0].values <- 42
	require.Eventually(t, func() bool { return len(cs[0].Values()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []int{42}, cs[0].Values())
}

func TestSourceErrorIsTerminal(t *testing.T) {
	h := newHarness(t)
	broadcast := errors.New("broadcast failed")
	src := newFakeSource(t)
	src.doneErr = broadcast
	var c collector

	require.NoError(t, h.m.Activate(c.bind("connectivity", src)))
	src.values <- 1
	close(src.values)
	require.Eventually(t, func() bool { return len(c.Errors()) == 1 }, time.Second, time.Millisecond)

	assert.Equal(t, []int{1}, c.Values())
	assert.ErrorIs(t, c.Errors()[0], broadcast)
	assert.Zero(t, c.Completed())
	subs := h.m.Subscriptions()
	require.Len(t, subs, 1)
	assert.Equal(t, StateTerminated, subs[0].State)
	assert.Zero(t, h.m.ActiveCount())

	require.NoError(t, h.m.Deactivate())
	assert.Zero(t, src.cancels.Load(), "terminated subscriptions are not cancelled")
}

func TestSourceCompletion(t *testing.T) {
	h := newHarness(t)
	src := newFakeSource(t)
	var c collector

	require.NoError(t, h.m.Activate(c.bind("access-points", src)))
	close(src.values)
	require.Eventually(t, func() bool { return c.Completed() == 1 }, time.Second, time.Millisecond)
	assert.Empty(t, c.Errors())
}

func TestHandlerFaultTerminatesSubscription(t *testing.T) {
	h := newHarness(t)
	bad, good := newFakeSource(t), newFakeSource(t)
	bad.leaky = true
	var calls atomic.Int32
	var cg collector

	require.NoError(t, h.m.Activate(
		Bind("signal-level", bad, func(v int) {
			calls.Add(1)
			panic(errors.New("widget gone"))
		}),
		cg.bind("connectivity", good),
	))

	bad.values <- 1
	require.Eventually(t, func() bool { return len(h.reporter.Faults()) == 1 }, time.Second, time.Millisecond)
	fault := h.reporter.Faults()[0]
	assert.Equal(t, "signal-level", fault.Source)
	assert.EqualError(t, fault.Unwrap(), "widget gone")
	assert.NotEmpty(t, fault.Stack)
	assert.EqualValues(t, 1, bad.cancels.Load())

	bad.values <- 2
	good.values <- 10
	h.flush(t, bad, good)
	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, []int{10}, cg.Values())
	assert.Equal(t, 1, h.m.ActiveCount())

	require.NoError(t, h.m.Deactivate())
	assert.EqualValues(t, 1, bad.cancels.Load())
}

func TestBackgroundTarget(t *testing.T) {
	h := newHarness(t)
	src := newFakeSource(t)
	var c collector

	require.NoError(t, h.m.Activate(Bind("internet", src, c.next, WithTarget(dispatch.Background))))
	subs := h.m.Subscriptions()
	require.Len(t, subs, 1)
	assert.Equal(t, dispatch.Background, subs[0].Target)

	src.values <- 5
	require.Eventually(t, func() bool { return len(c.Values()) == 1 }, time.Second, time.Millisecond)
}

func TestController(t *testing.T) {
	h := newHarness(t)
	src := newFakeSource(t)
	var c collector
	ctrl := NewController(h.m, func() []Binding {
		return []Binding{c.bind("connectivity", src)}
	}, internal.NoOpLogger())

	ctrl.OnForeground()
	ctrl.OnForeground()
	assert.Equal(t, 1, h.m.ActiveCount())
	assert.EqualValues(t, 1, src.subscribed.Load())

	ctrl.OnBackground()
	ctrl.OnBackground()
	assert.Zero(t, h.m.ActiveCount())
	assert.EqualValues(t, 1, src.cancels.Load())

	ctrl.OnForeground()
	assert.Equal(t, 1, h.m.ActiveCount())
	assert.EqualValues(t, 2, src.subscribed.Load())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "cancelled", StateCancelled.String())
	assert.Equal(t, "terminated", StateTerminated.String())
	assert.Equal(t, "faulted", StateFaulted.String())
	assert.Equal(t, "State(0)", State(0).String())
}
