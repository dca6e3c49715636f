package source

import (
	"context"
	"time"
)

// Poll returns a Source that calls sample after initialDelay and then every interval, emitting
// each result. A failing sample does not stop polling; use the sample's return value to encode
// failures the subscriber cares about.
func Poll[T any](initialDelay, interval time.Duration, sample func(ctx context.Context) T) Source[T] {
	return Producer[T](func(ctx context.Context, emit func(T)) error {
		timer := time.NewTimer(initialDelay)
		defer timer.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-timer.C:
			}
			v := sample(ctx)
			if ctx.Err() != nil {
				return nil
			}
			emit(v)
			timer.Reset(interval)
		}
	})
}
