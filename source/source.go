package source

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/getlantern/netwatch/dispatch"
)

// Sink receives values from a subscribed Source. Next is called in emission order, never
// concurrently with itself. Done is called at most once, after the last Next: a nil error means
// the source completed, anything else that it failed. A cancelled source does not call Done.
type Sink[T any] interface {
	Next(v T)
	Done(err error)
}

// Handle cancels a subscription.
type Handle interface {
	Cancel() error
}

// Source is a producer of values of type T.
type Source[T any] interface {
	Subscribe(sched dispatch.Scheduler, sink Sink[T]) (Handle, error)
}

// Func adapts a function into a Source.
type Func[T any] func(sched dispatch.Scheduler, sink Sink[T]) (Handle, error)

func (f Func[T]) Subscribe(sched dispatch.Scheduler, sink Sink[T]) (Handle, error) {
	return f(sched, sink)
}

// HandleFunc adapts a function into a Handle.
type HandleFunc func() error

func (f HandleFunc) Cancel() error { return f() }

// Producer is a blocking function that emits values until ctx is cancelled or it has nothing
// more to produce. Returning nil completes the source; returning an error fails it.
type Producer[T any] func(ctx context.Context, emit func(T)) error

// Subscribe runs the producer on a worker from sched.
func (p Producer[T]) Subscribe(sched dispatch.Scheduler, sink Sink[T]) (Handle, error) {
	ctx, cancel := context.WithCancel(context.Background())
	h := &ctxHandle{cancel: cancel}
	err := sched.Schedule(func() {
		err := p(ctx, func(v T) {
			if ctx.Err() == nil {
				sink.Next(v)
			}
		})
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		sink.Done(err)
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("schedule producer: %w", err)
	}
	return h, nil
}

type ctxHandle struct {
	once   sync.Once
	cancel context.CancelFunc
}

func (h *ctxHandle) Cancel() error {
	h.once.Do(h.cancel)
	return nil
}

// FromChannel returns a Source that forwards everything received on ch and completes when ch
// is closed. All subscribers share ch, so each value goes to exactly one of them.
func FromChannel[T any](ch <-chan T) Source[T] {
	return Producer[T](func(ctx context.Context, emit func(T)) error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case v, ok := <-ch:
				if !ok {
					return nil
				}
				emit(v)
			}
		}
	})
}
