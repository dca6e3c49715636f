// Package lifecycle binds a fixed set of event sources to handlers for as long as the owning
// view is in the foreground.
//
// A Manager is activated with a set of Bindings when the view becomes visible and deactivated
// when it leaves the foreground. Each activation creates fresh Subscriptions; a deactivated
// Subscription is never reused. Sources are consumed on a background Scheduler and every value
// is marshalled to the foreground Executor before its handler runs, so handlers may touch view
// state without locking. Once Deactivate returns no handler is started again for that cycle.
// Deactivate called on the foreground Executor also guarantees that none is still running.
//
// A handler that panics terminates its own Subscription: the source is cancelled, the fault is
// passed to the configured FaultReporter, and the other Subscriptions keep running.
package lifecycle
