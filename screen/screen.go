// Package screen implements the network status screen: it shows connectivity, Wi-Fi signal
// level and nearby access points while it is in the foreground, and holds no subscriptions
// while it is not.
package screen

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/getlantern/netwatch/lifecycle"
	"github.com/getlantern/netwatch/network"
	"github.com/getlantern/netwatch/source"
)

// SignalLevelPrefix precedes the signal level description.
const SignalLevelPrefix = "WiFi signal level: "

// Widgets renders the screen. Methods are only called on the foreground executor.
type Widgets interface {
	SetConnectivity(text string)
	SetSignalLevel(text string)
	SetAccessPoints(ssids []string)
	SetInternet(text string)
}

// Options configures a Screen.
type Options struct {
	Manager *lifecycle.Manager
	Monitor *network.Monitor
	Widgets Widgets
	// Internet is an optional reachability source. The internet widget is left untouched
	// when it is nil.
	Internet source.Source[bool]
	// Connectivity, if set, limits the statuses shown by the connectivity widget.
	Connectivity network.ConnectivityPredicate
	Logger       *slog.Logger
}

// Screen is a lifecycle.Host. Every OnForeground binds the monitor's sources to the widgets and
// every OnBackground releases them.
type Screen struct {
	ctrl       *lifecycle.Controller
	monitor    *network.Monitor
	widgets    Widgets
	internet   source.Source[bool]
	only       network.ConnectivityPredicate
	logger     *slog.Logger
	foreground atomic.Bool
}

var _ lifecycle.Host = (*Screen)(nil)

// New creates a Screen in the background state.
func New(opts Options) (*Screen, error) {
	if opts.Manager == nil || opts.Monitor == nil || opts.Widgets == nil {
		return nil, errors.New("screen: manager, monitor and widgets are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Screen{
		monitor:  opts.Monitor,
		widgets:  opts.Widgets,
		internet: opts.Internet,
		only:     opts.Connectivity,
		logger:   logger,
	}
	s.ctrl = lifecycle.NewController(opts.Manager, s.bindings, logger)
	return s, nil
}

// Foreground reports whether the screen is currently visible.
func (s *Screen) Foreground() bool { return s.foreground.Load() }

func (s *Screen) OnForeground() {
	if s.foreground.Swap(true) {
		return
	}
	s.logger.Debug("Screen entering foreground")
	s.ctrl.OnForeground()
}

func (s *Screen) OnBackground() {
	if !s.foreground.Swap(false) {
		return
	}
	s.logger.Debug("Screen leaving foreground")
	s.ctrl.OnBackground()
}

func (s *Screen) bindings() []lifecycle.Binding {
	bindings := []lifecycle.Binding{
		lifecycle.Bind(network.SourceConnectivity, s.monitor.Connectivity(s.only), s.showConnectivity,
			lifecycle.OnError(s.sourceFailed(network.SourceConnectivity))),
		lifecycle.Bind(network.SourceSignalLevel, s.monitor.SignalLevel(), s.showSignalLevel,
			lifecycle.OnError(s.sourceFailed(network.SourceSignalLevel))),
		lifecycle.Bind(network.SourceAccessPoints, s.monitor.AccessPoints(), s.showAccessPoints,
			lifecycle.OnError(s.sourceFailed(network.SourceAccessPoints))),
	}
	if s.internet != nil {
		bindings = append(bindings, lifecycle.Bind(network.SourceInternet, s.internet, s.showInternet,
			lifecycle.OnError(s.sourceFailed(network.SourceInternet))))
	}
	return bindings
}

func (s *Screen) showConnectivity(status network.ConnectivityStatus) {
	s.logger.Debug(status.String())
	s.widgets.SetConnectivity(status.Description())
}

func (s *Screen) showSignalLevel(level network.SignalLevel) {
	s.logger.Debug(level.String())
	s.widgets.SetSignalLevel(FormatSignalLevel(level))
}

func (s *Screen) showAccessPoints(aps []network.AccessPoint) {
	s.logger.Debug("Access points updated", "count", len(aps))
	s.widgets.SetAccessPoints(network.SSIDs(aps))
}

func (s *Screen) showInternet(reachable bool) {
	s.logger.Debug("Internet reachability changed", "reachable", reachable)
	s.widgets.SetInternet(FormatInternet(reachable))
}

func (s *Screen) sourceFailed(name string) func(error) {
	return func(err error) {
		if errors.Is(err, lifecycle.ErrSourceUnavailable) {
			s.logger.Warn("Source unavailable", "source", name, "error", err)
			return
		}
		s.logger.Error("Source failed", "source", name, "error", err)
	}
}

// FormatSignalLevel returns the signal level line shown on screen.
func FormatSignalLevel(level network.SignalLevel) string {
	return SignalLevelPrefix + level.Description()
}

// FormatInternet returns the internet reachability line shown on screen.
func FormatInternet(reachable bool) string {
	return fmt.Sprintf("Internet access: %t", reachable)
}
