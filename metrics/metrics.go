// Package metrics records subscription activity as OpenTelemetry metrics.
package metrics

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/getlantern/netwatch/lifecycle"
)

const meterName = "github.com/getlantern/netwatch/lifecycle"

var (
	sourceKey = attribute.Key("source")
	stateKey  = attribute.Key("state")
)

// Stats implements lifecycle.Stats.
type Stats struct {
	active         metric.Int64UpDownCounter
	activations    metric.Int64Counter
	deactivations  metric.Int64Counter
	delivered      metric.Int64Counter
	dropped        metric.Int64Counter
	faults         metric.Int64Counter
	cancelFailures metric.Int64Counter
}

var _ lifecycle.Stats = (*Stats)(nil)

// New creates the instruments on mp, or on the global meter provider if mp is nil.
func New(mp metric.MeterProvider) (*Stats, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)
	s := &Stats{}
	var err, errs error
	s.active, err = meter.Int64UpDownCounter("netwatch.subscriptions.active",
		metric.WithDescription("Subscriptions currently delivering values"))
	errs = errors.Join(errs, err)
	s.activations, err = meter.Int64Counter("netwatch.subscriptions.activated",
		metric.WithDescription("Subscriptions created"))
	errs = errors.Join(errs, err)
	s.deactivations, err = meter.Int64Counter("netwatch.subscriptions.deactivated",
		metric.WithDescription("Subscriptions that stopped, by final state"))
	errs = errors.Join(errs, err)
	s.delivered, err = meter.Int64Counter("netwatch.values.delivered",
		metric.WithDescription("Values handed to handlers"))
	errs = errors.Join(errs, err)
	s.dropped, err = meter.Int64Counter("netwatch.values.dropped",
		metric.WithDescription("Values discarded because their subscription was no longer active"))
	errs = errors.Join(errs, err)
	s.faults, err = meter.Int64Counter("netwatch.handler.faults",
		metric.WithDescription("Handler panics"))
	errs = errors.Join(errs, err)
	s.cancelFailures, err = meter.Int64Counter("netwatch.cancel.failures",
		metric.WithDescription("Source cancellations that returned an error"))
	errs = errors.Join(errs, err)
	if errs != nil {
		return nil, fmt.Errorf("creating instruments: %w", errs)
	}
	return s, nil
}

func (s *Stats) Activated(source string) {
	opt := sourceOpt(source)
	s.activations.Add(context.Background(), 1, opt)
	s.active.Add(context.Background(), 1, opt)
}

func (s *Stats) Deactivated(source string, state lifecycle.State) {
	s.active.Add(context.Background(), -1, sourceOpt(source))
	s.deactivations.Add(context.Background(), 1,
		metric.WithAttributes(sourceKey.String(source), stateKey.String(state.String())))
}

func (s *Stats) Delivered(source string) {
	s.delivered.Add(context.Background(), 1, sourceOpt(source))
}

func (s *Stats) Dropped(source string) {
	s.dropped.Add(context.Background(), 1, sourceOpt(source))
}

func (s *Stats) Faulted(source string) {
	s.faults.Add(context.Background(), 1, sourceOpt(source))
}

func (s *Stats) CancelFailed(source string) {
	s.cancelFailures.Add(context.Background(), 1, sourceOpt(source))
}

func sourceOpt(source string) metric.AddOption {
	return metric.WithAttributes(sourceKey.String(source))
}
