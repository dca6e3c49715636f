package source

import "github.com/getlantern/netwatch/dispatch"

// Map returns a Source emitting f(v) for every v emitted by src.
func Map[T, U any](src Source[T], f func(T) U) Source[U] {
	return Func[U](func(sched dispatch.Scheduler, sink Sink[U]) (Handle, error) {
		return src.Subscribe(sched, &mapSink[T, U]{sink: sink, f: f})
	})
}

type mapSink[T, U any] struct {
	sink Sink[U]
	f    func(T) U
}

func (m *mapSink[T, U]) Next(v T)       { m.sink.Next(m.f(v)) }
func (m *mapSink[T, U]) Done(err error) { m.sink.Done(err) }

// Distinct returns a Source that drops values equal to the one emitted just before them. Each
// subscription tracks its own last value.
func Distinct[T comparable](src Source[T]) Source[T] {
	return Func[T](func(sched dispatch.Scheduler, sink Sink[T]) (Handle, error) {
		return src.Subscribe(sched, &distinctSink[T]{sink: sink})
	})
}

type distinctSink[T comparable] struct {
	sink Sink[T]
	last T
	seen bool
}

func (d *distinctSink[T]) Next(v T) {
	if d.seen && d.last == v {
		return
	}
	d.last, d.seen = v, true
	d.sink.Next(v)
}

func (d *distinctSink[T]) Done(err error) { d.sink.Done(err) }

// Filter returns a Source emitting only the values of src for which keep returns true.
func Filter[T any](src Source[T], keep func(T) bool) Source[T] {
	return Func[T](func(sched dispatch.Scheduler, sink Sink[T]) (Handle, error) {
		return src.Subscribe(sched, &filterSink[T]{sink: sink, keep: keep})
	})
}

type filterSink[T any] struct {
	sink Sink[T]
	keep func(T) bool
}

func (f *filterSink[T]) Next(v T) {
	if f.keep(v) {
		f.sink.Next(v)
	}
}

func (f *filterSink[T]) Done(err error) { f.sink.Done(err) }
