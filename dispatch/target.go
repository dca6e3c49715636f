package dispatch

// Target identifies the execution context a pipeline step runs on.
type Target int

const (
	// Foreground runs the step on the Looper, the UI thread analogue.
	Foreground Target = iota
	// Background runs the step directly on the producer's worker.
	Background
)

func (t Target) String() string {
	switch t {
	case Foreground:
		return "foreground"
	case Background:
		return "background"
	default:
		return "unknown"
	}
}

// Executor accepts tasks for asynchronous execution. Post returns false when the task was
// rejected, e.g. because the executor is closed.
type Executor interface {
	Post(task func()) bool
}

// Inline is an Executor that runs each task on the calling goroutine.
type Inline struct{}

func (Inline) Post(task func()) bool {
	task()
	return true
}
