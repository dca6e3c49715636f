package lifecycle

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/getlantern/netwatch/dispatch"
	"github.com/getlantern/netwatch/source"
)

// State is the lifecycle state of a Subscription. Only StateActive delivers values; every other
// state is final.
type State int32

const (
	StateActive State = iota + 1
	// StateCancelled means the subscription was cancelled by Deactivate or Close.
	StateCancelled
	// StateTerminated means the source completed or failed on its own.
	StateTerminated
	// StateFaulted means the handler panicked and the subscription was cancelled.
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateCancelled:
		return "cancelled"
	case StateTerminated:
		return "terminated"
	case StateFaulted:
		return "faulted"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Subscription is a single-use binding between one source and its handler.
type Subscription struct {
	id      string
	binding *Binding

	state     atomic.Int32
	delivered atomic.Uint64

	mu     sync.Mutex
	handle source.Handle
}

func newSubscription(b *Binding) *Subscription {
	s := &Subscription{
		id:      uuid.NewString(),
		binding: b,
	}
	s.state.Store(int32(StateActive))
	return s
}

func (s *Subscription) ID() string              { return s.id }
func (s *Subscription) Source() string          { return s.binding.name }
func (s *Subscription) Target() dispatch.Target { return s.binding.target }
func (s *Subscription) State() State            { return State(s.state.Load()) }
func (s *Subscription) Active() bool            { return s.State() == StateActive }

// transition moves an active subscription to the final state to. It reports whether this call
// made the change.
func (s *Subscription) transition(to State) bool {
	return s.state.CompareAndSwap(int32(StateActive), int32(to))
}

// attach stores the handle returned by the source. If the subscription already left the active
// state while subscribing, the handle is cancelled right away instead.
func (s *Subscription) attach(h source.Handle) error {
	if h == nil {
		return nil
	}
	s.mu.Lock()
	if !s.Active() {
		s.mu.Unlock()
		return safeCancel(h)
	}
	s.handle = h
	s.mu.Unlock()
	return nil
}

// detach forgets the handle without cancelling it.
func (s *Subscription) detach() source.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.handle
	s.handle = nil
	return h
}

// cancelIfActive cancels the source only if the subscription is still active, so a source is
// never asked to cancel twice through the manager.
func (s *Subscription) cancelIfActive(to State) (bool, error) {
	if !s.transition(to) {
		return false, nil
	}
	h := s.detach()
	if h == nil {
		return true, nil
	}
	return true, safeCancel(h)
}

func safeCancel(h source.Handle) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cancel panicked: %v", r)
		}
	}()
	return h.Cancel()
}

// SubscriptionInfo is a point-in-time view of a Subscription.
type SubscriptionInfo struct {
	ID        string
	Source    string
	Target    dispatch.Target
	State     State
	Delivered uint64
}

func (s *Subscription) info() SubscriptionInfo {
	return SubscriptionInfo{
		ID:        s.id,
		Source:    s.binding.name,
		Target:    s.binding.target,
		State:     s.State(),
		Delivered: s.delivered.Load(),
	}
}
