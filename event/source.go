package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/getlantern/netwatch/dispatch"
	"github.com/getlantern/netwatch/source"
)

// DefaultBuffer is the number of pending events a subscription holds before it starts
// discarding the oldest ones.
const DefaultBuffer = 64

// SourceOption configures a bus-backed source.
type SourceOption func(*sourceConfig)

type sourceConfig struct {
	replay bool
	buffer int
}

// Replay makes new subscribers receive the last published value first.
func Replay() SourceOption {
	return func(c *sourceConfig) { c.replay = true }
}

// Buffer sets the per-subscription queue size.
func Buffer(n int) SourceOption {
	return func(c *sourceConfig) {
		if n > 0 {
			c.buffer = n
		}
	}
}

// Source returns a source.Source emitting every value of type T published to topic. Publishing
// never blocks on a slow subscriber: when its queue is full the oldest pending value is
// discarded, so subscribers always end up with the latest state. Values of other types published
// to the same topic are ignored.
func Source[T any](bus *Bus, topic Topic, opts ...SourceOption) source.Source[T] {
	cfg := sourceConfig{buffer: DefaultBuffer}
	for _, opt := range opts {
		opt(&cfg)
	}
	return source.Func[T](func(sched dispatch.Scheduler, sink source.Sink[T]) (source.Handle, error) {
		queue := make(chan T, cfg.buffer)
		push := func(data any) {
			v, ok := data.(T)
			if !ok {
				return
			}
			for {
				select {
				case queue <- v:
					return
				default:
				}
				select {
				case <-queue:
				default:
				}
			}
		}
		// subscribe before reading the last value so nothing published in between is lost.
		sub := bus.Subscribe(topic, push)
		if cfg.replay {
			if last, ok := bus.Last(topic); ok {
				push(last)
			}
		}

		ctx, cancel := context.WithCancel(context.Background())
		err := sched.Schedule(func() {
			for {
				select {
				case <-ctx.Done():
					return
				case v := <-queue:
					if ctx.Err() != nil {
						return
					}
					sink.Next(v)
				}
			}
		})
		if err != nil {
			cancel()
			bus.Unsubscribe(sub)
			return nil, fmt.Errorf("subscribe to %s: %w", topic, err)
		}
		var once sync.Once
		return source.HandleFunc(func() error {
			once.Do(func() {
				bus.Unsubscribe(sub)
				cancel()
			})
			return nil
		}), nil
	})
}
