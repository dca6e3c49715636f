// Package reporting sends handler faults and fatal errors to Sentry.
package reporting

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/getlantern/netwatch/lifecycle"
)

// Init configures the global Sentry client. With an empty dsn events are dropped.
func Init(dsn, release string) error {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		AttachStacktrace: true,
		Release:          release,
	})
	if err != nil {
		return fmt.Errorf("sentry.Init: %w", err)
	}
	return nil
}

// Reporter is a lifecycle.FaultReporter that captures every fault as a Sentry exception.
type Reporter struct {
	hub    *sentry.Hub
	logger *slog.Logger
}

var _ lifecycle.FaultReporter = (*Reporter)(nil)

// NewReporter reports to hub, or to the current hub if hub is nil.
func NewReporter(hub *sentry.Hub, logger *slog.Logger) *Reporter {
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{hub: hub, logger: logger}
}

func (r *Reporter) ReportFault(f *lifecycle.HandlerFault) {
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		scope.SetTag("source", f.Source)
		scope.SetContext("fault", sentry.Context{
			"subscription_id": f.SubscriptionID,
			"panic":           fmt.Sprint(f.Value),
			"stack":           string(f.Stack),
		})
		if id := r.hub.CaptureException(f); id != nil {
			r.logger.Debug("Reported handler fault", "source", f.Source, "event_id", *id)
		}
	})
}

// Flush waits up to timeout for buffered events to be sent.
func (r *Reporter) Flush(timeout time.Duration) bool {
	return r.hub.Flush(timeout)
}

// PanicListener reports msg as fatal and waits for it to be delivered.
func PanicListener(msg string) {
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelFatal)
	})

	sentry.CaptureMessage(msg)
	if result := sentry.Flush(6 * time.Second); !result {
		slog.Error("sentry.Flush: timeout")
	}
}
