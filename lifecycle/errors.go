package lifecycle

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable is delivered to a handler as a terminal error when its source could
	// not be subscribed to. The subscription is not retried.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrAlreadyActive is returned by Activate when the previous cycle was not deactivated.
	ErrAlreadyActive = errors.New("subscriptions already active")
	// ErrDuplicateSource is returned by Activate when two bindings share a source name.
	ErrDuplicateSource = errors.New("duplicate source")
	// ErrClosed is returned by Activate after Close.
	ErrClosed = errors.New("manager closed")
)

// HandlerFault describes a panic raised by a handler while processing a value.
type HandlerFault struct {
	Source         string
	SubscriptionID string
	Value          any
	Stack          []byte
}

func (f *HandlerFault) Error() string {
	return fmt.Sprintf("handler for %q panicked: %v", f.Source, f.Value)
}

// Unwrap returns the panic value if it was an error.
func (f *HandlerFault) Unwrap() error {
	if err, ok := f.Value.(error); ok {
		return err
	}
	return nil
}

// FaultReporter receives handler faults. Implementations must be safe for concurrent use.
type FaultReporter interface {
	ReportFault(f *HandlerFault)
}

type nopReporter struct{}

func (nopReporter) ReportFault(*HandlerFault) {}
