package lifecycle

// Stats is notified of subscription activity. The metrics package provides an
// OpenTelemetry-backed implementation.
type Stats interface {
	Activated(source string)
	Deactivated(source string, state State)
	Delivered(source string)
	Dropped(source string)
	Faulted(source string)
	CancelFailed(source string)
}

type nopStats struct{}

func (nopStats) Activated(string)          {}
func (nopStats) Deactivated(string, State) {}
func (nopStats) Delivered(string)          {}
func (nopStats) Dropped(string)            {}
func (nopStats) Faulted(string)            {}
func (nopStats) CancelFailed(string)       {}
