package network

import (
	"fmt"
	"log/slog"

	"github.com/getlantern/netwatch/dispatch"
	"github.com/getlantern/netwatch/event"
	"github.com/getlantern/netwatch/source"
)

// Topics the Monitor publishes on.
const (
	TopicConnectivity event.Topic = "network.connectivity"
	TopicRSSI         event.Topic = "network.rssi"
	TopicScan         event.Topic = "network.scan"
)

// Source names used when binding Monitor sources.
const (
	SourceConnectivity = "connectivity"
	SourceSignalLevel  = "signal-level"
	SourceAccessPoints = "access-points"
	SourceInternet     = "internet"
)

// Scanner starts a Wi-Fi scan. Results are expected back through Monitor.ReportScan.
type Scanner interface {
	StartScan() error
}

// Monitor is the bridge between platform network callbacks and event sources. Report methods
// may be called from any goroutine and never block on subscribers.
type Monitor struct {
	bus       *event.Bus
	numLevels int
	scanner   Scanner
	logger    *slog.Logger
}

// NewMonitor creates a Monitor publishing on bus. numLevels is the signal level bucket count;
// values below 2 fall back to DefaultSignalLevels. scanner may be nil if the platform has no way
// to trigger scans.
func NewMonitor(bus *event.Bus, numLevels int, scanner Scanner, logger *slog.Logger) *Monitor {
	if bus == nil {
		bus = event.NewBus()
	}
	if numLevels < 2 {
		numLevels = DefaultSignalLevels
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{bus: bus, numLevels: numLevels, scanner: scanner, logger: logger}
}

// ReportConnectivity publishes the current connectivity status.
func (m *Monitor) ReportConnectivity(status ConnectivityStatus) {
	m.bus.Publish(TopicConnectivity, status)
}

// ReportRSSI publishes a signal strength reading in dBm.
func (m *Monitor) ReportRSSI(rssi int) {
	m.bus.Publish(TopicRSSI, rssi)
}

// ReportScan publishes the result of a Wi-Fi scan.
func (m *Monitor) ReportScan(aps []AccessPoint) {
	m.bus.Publish(TopicScan, append([]AccessPoint(nil), aps...))
}

// Connectivity returns a source of connectivity changes. New subscribers first receive the last
// reported status. Repeated reports of the same status are collapsed, since platforms tend to
// announce going offline more than once. Statuses rejected by any of filters are not emitted.
func (m *Monitor) Connectivity(filters ...ConnectivityPredicate) source.Source[ConnectivityStatus] {
	src := source.Distinct(event.Source[ConnectivityStatus](m.bus, TopicConnectivity, event.Replay()))
	for _, f := range filters {
		if f != nil {
			src = source.Filter(src, f)
		}
	}
	return src
}

// CurrentConnectivity returns the last reported status, or Unknown if none was reported yet.
func (m *Monitor) CurrentConnectivity() ConnectivityStatus {
	if v, ok := m.bus.Last(TopicConnectivity); ok {
		if status, ok := v.(ConnectivityStatus); ok {
			return status
		}
	}
	return Unknown
}

// RawSignalLevel returns a source of signal levels in [0, numLevels).
func (m *Monitor) RawSignalLevel() source.Source[int] {
	levels := m.numLevels
	return source.Map(event.Source[int](m.bus, TopicRSSI, event.Replay()), func(rssi int) int {
		return CalculateSignalLevel(rssi, levels)
	})
}

// SignalLevel returns a source of signal level buckets.
func (m *Monitor) SignalLevel() source.Source[SignalLevel] {
	return source.Map(m.RawSignalLevel(), SignalLevelFromLevel)
}

// AccessPoints returns a source of scan results. When the Monitor has a Scanner, subscribing
// starts a scan, failing the subscription if the platform refuses, and every result received
// triggers the next scan so the list stays fresh.
func (m *Monitor) AccessPoints() source.Source[[]AccessPoint] {
	results := event.Source[[]AccessPoint](m.bus, TopicScan, event.Replay())
	if m.scanner == nil {
		return results
	}
	return source.Func[[]AccessPoint](func(sched dispatch.Scheduler, sink source.Sink[[]AccessPoint]) (source.Handle, error) {
		if err := m.scanner.StartScan(); err != nil {
			return nil, fmt.Errorf("start scan: %w", err)
		}
		return results.Subscribe(sched, &rescanSink{Sink: sink, m: m})
	})
}

type rescanSink struct {
	source.Sink[[]AccessPoint]
	m *Monitor
}

func (r *rescanSink) Next(aps []AccessPoint) {
	if err := r.m.scanner.StartScan(); err != nil {
		r.m.logger.Debug("Failed to request another scan", "error", err)
	}
	r.Sink.Next(aps)
}
