package lifecycle

import (
	"github.com/getlantern/netwatch/dispatch"
	"github.com/getlantern/netwatch/source"
)

// Binding pairs a named source with the handler its values are delivered to. Bindings are
// templates: every activation creates a new Subscription from them.
type Binding struct {
	name       string
	target     dispatch.Target
	onError    func(error)
	onComplete func()
	subscribe  func(m *Manager, sub *Subscription) (source.Handle, error)
}

// BindOption configures a Binding.
type BindOption func(*Binding)

// OnError sets the handler for the terminal error of a source.
func OnError(fn func(error)) BindOption {
	return func(b *Binding) { b.onError = fn }
}

// OnComplete sets the handler called when a source completes.
func OnComplete(fn func()) BindOption {
	return func(b *Binding) { b.onComplete = fn }
}

// WithTarget selects where the handler runs. Handlers on dispatch.Background run on the
// producer's worker and may still be running, or start, while Deactivate is in progress.
func WithTarget(t dispatch.Target) BindOption {
	return func(b *Binding) { b.target = t }
}

// Bind creates a Binding that delivers every value of src to next.
func Bind[T any](name string, src source.Source[T], next func(T), opts ...BindOption) Binding {
	b := Binding{name: name, target: dispatch.Foreground}
	for _, opt := range opts {
		opt(&b)
	}
	b.subscribe = func(m *Manager, sub *Subscription) (source.Handle, error) {
		return src.Subscribe(m.sched, &deliverySink[T]{m: m, sub: sub, next: next})
	}
	return b
}

// deliverySink hops values from the producer's worker onto the subscription's executor.
type deliverySink[T any] struct {
	m    *Manager
	sub  *Subscription
	next func(T)
}

func (d *deliverySink[T]) Next(v T) {
	if !d.sub.Active() {
		d.m.stats.Dropped(d.sub.Source())
		return
	}
	d.m.post(d.sub, func() {
		d.m.deliver(d.sub, func() { d.next(v) })
	})
}

func (d *deliverySink[T]) Done(err error) {
	d.m.post(d.sub, func() {
		d.m.terminate(d.sub, err)
	})
}
