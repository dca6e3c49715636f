package dispatch

import (
	"log/slog"
	"sync"
)

// Looper is a FIFO task queue drained by a single goroutine. Post never blocks.
type Looper struct {
	mu     sync.Mutex
	queue  []func()
	closed bool

	wake    chan struct{}
	done    chan struct{}
	started bool
	logger  *slog.Logger
}

// NewLooper creates a Looper. Call Start, or Run on a goroutine the caller owns, before posting
// work that needs to execute.
func NewLooper(logger *slog.Logger) *Looper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Looper{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Start runs the loop on a new goroutine.
func (l *Looper) Start() {
	go l.Run()
}

// Run drains the queue on the calling goroutine until Close is called. Calling Run more than
// once, or after Start, returns immediately.
func (l *Looper) Run() {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return
	}
	l.started = true
	l.mu.Unlock()
	defer close(l.done)

	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.mu.Unlock()
			<-l.wake
			l.mu.Lock()
		}
		if l.closed {
			dropped := len(l.queue)
			l.queue = nil
			l.mu.Unlock()
			if dropped > 0 {
				l.logger.Debug("Looper closed with pending tasks", "dropped", dropped)
			}
			return
		}
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		for _, task := range batch {
			l.run(task)
		}
	}
}

func (l *Looper) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Recovered from panic in looper task", "panic", r)
		}
	}()
	task()
}

// Post enqueues task. It returns false if the Looper has been closed.
func (l *Looper) Post(task func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Sync posts task and waits for it to finish. Every task posted before it has run by the time
// Sync returns. The loop must be running, and Sync must not be called from the loop goroutine.
func (l *Looper) Sync(task func()) bool {
	finished := make(chan struct{})
	ok := l.Post(func() {
		defer close(finished)
		task()
	})
	if !ok {
		return false
	}
	select {
	case <-finished:
		return true
	case <-l.done:
		return false
	}
}

// Close stops the loop. Tasks the loop has not picked up yet are discarded; if the loop is
// running, Close waits for the batch in progress to finish, so it must not be called from a
// task running on the loop.
func (l *Looper) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	started := l.started
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	if started {
		<-l.done
	}
}
