package dispatch

import (
	"errors"
	"log/slog"
	"time"

	"github.com/alitto/pond"
)

var (
	// ErrPoolStopped is returned when scheduling on a stopped pool.
	ErrPoolStopped = errors.New("pool stopped")
	// ErrPoolFull is returned when every worker is busy.
	ErrPoolFull = errors.New("no idle worker in pool")
)

// Scheduler runs tasks on a background execution context.
type Scheduler interface {
	Schedule(task func()) error
}

// Pool is a Scheduler backed by a bounded worker pool. Producers for event sources typically
// occupy a worker for as long as they are subscribed, so a task is only accepted while a worker
// is free to run it. Nothing waits in a queue behind a producer that never returns.
type Pool struct {
	pool   *pond.WorkerPool
	slots  chan struct{}
	logger *slog.Logger
}

// NewPool creates a pool running at most maxWorkers tasks at once.
func NewPool(maxWorkers int, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	p := &Pool{logger: logger, slots: make(chan struct{}, maxWorkers)}
	p.pool = pond.New(maxWorkers, maxWorkers,
		pond.MinWorkers(0),
		pond.IdleTimeout(30*time.Second),
		pond.PanicHandler(func(r interface{}) {
			logger.Error("Recovered from panic in background task", "panic", r)
		}),
	)
	return p
}

// Schedule submits task without blocking. It fails with ErrPoolFull when every worker is busy.
func (p *Pool) Schedule(task func()) error {
	if p.pool.Stopped() {
		return ErrPoolStopped
	}
	select {
	case p.slots <- struct{}{}:
	default:
		return ErrPoolFull
	}
	release := func() { <-p.slots }
	if !p.pool.TrySubmit(func() {
		defer release()
		task()
	}) {
		release()
		if p.pool.Stopped() {
			return ErrPoolStopped
		}
		return ErrPoolFull
	}
	return nil
}

// Stop waits up to timeout for running tasks to return and stops the pool.
func (p *Pool) Stop(timeout time.Duration) {
	p.pool.StopAndWaitFor(timeout)
	p.logger.Debug("Background pool stopped", "submitted", p.pool.SubmittedTasks(), "completed", p.pool.CompletedTasks())
}
