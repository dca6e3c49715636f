package lifecycle

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/getlantern/netwatch/dispatch"
)

// Options configures a Manager.
type Options struct {
	// Scheduler runs source producers. Required.
	Scheduler dispatch.Scheduler
	// Foreground is the executor handlers run on by default. Required.
	Foreground dispatch.Executor
	// Logger defaults to slog.Default.
	Logger *slog.Logger
	// Tag is added to every log record as "tag".
	Tag string
	// Reporter receives handler faults.
	Reporter FaultReporter
	// Stats receives subscription activity.
	Stats Stats
}

// Manager owns the subscriptions of one view.
type Manager struct {
	sched    dispatch.Scheduler
	fg       dispatch.Executor
	logger   *slog.Logger
	reporter FaultReporter
	stats    Stats

	mu     sync.Mutex
	subs   []*Subscription
	closed bool
}

// New creates a Manager.
func New(opts Options) (*Manager, error) {
	if opts.Scheduler == nil {
		return nil, errors.New("lifecycle: scheduler is required")
	}
	if opts.Foreground == nil {
		return nil, errors.New("lifecycle: foreground executor is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Tag != "" {
		logger = logger.With("tag", opts.Tag)
	}
	m := &Manager{
		sched:    opts.Scheduler,
		fg:       opts.Foreground,
		logger:   logger,
		reporter: opts.Reporter,
		stats:    opts.Stats,
	}
	if m.reporter == nil {
		m.reporter = nopReporter{}
	}
	if m.stats == nil {
		m.stats = nopStats{}
	}
	return m, nil
}

// Activate subscribes to every binding. It fails without subscribing to anything if the
// previous cycle has not been deactivated, if two bindings share a name, or if the manager is
// closed. A source that cannot be subscribed to does not fail Activate; its handler receives an
// error wrapping ErrSourceUnavailable instead.
func (m *Manager) Activate(bindings ...Binding) error {
	failed, err := m.activate(bindings)
	if err != nil {
		return err
	}
	// handlers may call back into the manager, so they are posted after the lock is released.
	for _, f := range failed {
		m.post(f.sub, func() { m.notify(f.sub, f.err) })
	}
	return nil
}

type failure struct {
	sub *Subscription
	err error
}

func (m *Manager) activate(bindings []Binding) ([]failure, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if len(m.subs) > 0 {
		return nil, ErrAlreadyActive
	}
	seen := make(map[string]struct{}, len(bindings))
	for _, b := range bindings {
		if b.subscribe == nil {
			return nil, fmt.Errorf("lifecycle: binding %q was not created with Bind", b.name)
		}
		if _, dup := seen[b.name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateSource, b.name)
		}
		seen[b.name] = struct{}{}
	}

	subs := make([]*Subscription, 0, len(bindings))
	var failed []failure
	for _, b := range bindings {
		sub := newSubscription(&b)
		subs = append(subs, sub)
		m.stats.Activated(b.name)

		h, err := b.subscribe(m, sub)
		if err != nil {
			serr := fmt.Errorf("%s: %w: %w", b.name, ErrSourceUnavailable, err)
			if m.finish(sub, serr) {
				failed = append(failed, failure{sub: sub, err: serr})
			}
			continue
		}
		if err := sub.attach(h); err != nil {
			m.logger.Warn("Failed to cancel late handle", "source", b.name, "error", err)
		}
		m.logger.Debug("Subscribed", "source", b.name, "id", sub.id, "target", b.target)
	}
	m.subs = subs
	return failed, nil
}

// Deactivate cancels every active subscription. A failing cancellation does not stop the
// others; all failures are returned joined. Calling Deactivate with nothing active is a no-op.
func (m *Manager) Deactivate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deactivateLocked()
}

func (m *Manager) deactivateLocked() error {
	if len(m.subs) == 0 {
		return nil
	}
	subs := m.subs
	m.subs = nil

	var errs []error
	for _, sub := range subs {
		changed, err := sub.cancelIfActive(StateCancelled)
		if !changed {
			continue
		}
		m.stats.Deactivated(sub.Source(), StateCancelled)
		if err != nil {
			m.stats.CancelFailed(sub.Source())
			m.logger.Error("Failed to cancel subscription", "source", sub.Source(), "id", sub.id, "error", err)
			errs = append(errs, fmt.Errorf("cancel %s: %w", sub.Source(), err))
			continue
		}
		m.logger.Debug("Cancelled subscription", "source", sub.Source(), "id", sub.id, "delivered", sub.delivered.Load())
	}
	return errors.Join(errs...)
}

// Close deactivates the manager for good.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.deactivateLocked()
}

// ActiveCount returns the number of subscriptions currently delivering values.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, sub := range m.subs {
		if sub.Active() {
			n++
		}
	}
	return n
}

// Subscriptions returns a snapshot of the subscriptions of the current cycle.
func (m *Manager) Subscriptions() []SubscriptionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	infos := make([]SubscriptionInfo, 0, len(m.subs))
	for _, sub := range m.subs {
		infos = append(infos, sub.info())
	}
	return infos
}

func (m *Manager) post(sub *Subscription, task func()) {
	var exec dispatch.Executor = m.fg
	if sub.Target() == dispatch.Background {
		exec = dispatch.Inline{}
	}
	if !exec.Post(task) {
		m.stats.Dropped(sub.Source())
	}
}

// deliver runs on the subscription's executor.
func (m *Manager) deliver(sub *Subscription, call func()) {
	if !sub.Active() {
		m.stats.Dropped(sub.Source())
		return
	}
	if fault := m.invoke(sub, call); fault != nil {
		m.fault(sub, fault)
		return
	}
	sub.delivered.Add(1)
	m.stats.Delivered(sub.Source())
}

// terminate runs on the subscription's executor once the source has finished on its own.
func (m *Manager) terminate(sub *Subscription, err error) {
	if m.finish(sub, err) {
		m.notify(sub, err)
	}
}

// finish moves sub to StateTerminated. It reports whether the handler still has to be told.
func (m *Manager) finish(sub *Subscription, err error) bool {
	if !sub.transition(StateTerminated) {
		return false
	}
	sub.detach()
	m.stats.Deactivated(sub.Source(), StateTerminated)
	if err != nil {
		m.logger.Warn("Source failed", "source", sub.Source(), "id", sub.id, "error", err)
	} else {
		m.logger.Debug("Source completed", "source", sub.Source(), "id", sub.id)
	}
	return true
}

func (m *Manager) notify(sub *Subscription, err error) {
	b := sub.binding
	call := b.onComplete
	if err != nil {
		call = nil
		if b.onError != nil {
			call = func() { b.onError(err) }
		}
	}
	if call == nil {
		return
	}
	if fault := m.invoke(sub, call); fault != nil {
		m.report(fault)
	}
}

func (m *Manager) fault(sub *Subscription, fault *HandlerFault) {
	changed, err := sub.cancelIfActive(StateFaulted)
	if changed {
		m.stats.Deactivated(sub.Source(), StateFaulted)
	}
	if err != nil {
		m.stats.CancelFailed(sub.Source())
		m.logger.Error("Failed to cancel faulted subscription", "source", sub.Source(), "id", sub.id, "error", err)
	}
	m.report(fault)
}

func (m *Manager) report(fault *HandlerFault) {
	m.stats.Faulted(fault.Source)
	m.logger.Error("Handler fault", "source", fault.Source, "id", fault.SubscriptionID, "panic", fault.Value)
	m.reporter.ReportFault(fault)
}

func (m *Manager) invoke(sub *Subscription, call func()) (fault *HandlerFault) {
	defer func() {
		if r := recover(); r != nil {
			fault = &HandlerFault{
				Source:         sub.Source(),
				SubscriptionID: sub.id,
				Value:          r,
				Stack:          debug.Stack(),
			}
		}
	}()
	call()
	return nil
}
