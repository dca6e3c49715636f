package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/getlantern/netwatch/lifecycle"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sum(t *testing.T, agg metricdata.Aggregation) int64 {
	t.Helper()
	s, ok := agg.(metricdata.Sum[int64])
	require.True(t, ok, "unexpected aggregation %T", agg)
	var total int64
	for _, dp := range s.DataPoints {
		total += dp.Value
	}
	return total
}

func TestStats(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	s, err := New(mp)
	require.NoError(t, err)

	s.Activated("connectivity")
	s.Activated("signal-level")
	s.Delivered("connectivity")
	s.Delivered("connectivity")
	s.Dropped("signal-level")
	s.Faulted("signal-level")
	s.Deactivated("signal-level", lifecycle.StateFaulted)
	s.CancelFailed("connectivity")

	got := collect(t, reader)
	assert.EqualValues(t, 1, sum(t, got["netwatch.subscriptions.active"]))
	assert.EqualValues(t, 2, sum(t, got["netwatch.subscriptions.activated"]))
	assert.EqualValues(t, 1, sum(t, got["netwatch.subscriptions.deactivated"]))
	assert.EqualValues(t, 2, sum(t, got["netwatch.values.delivered"]))
	assert.EqualValues(t, 1, sum(t, got["netwatch.values.dropped"]))
	assert.EqualValues(t, 1, sum(t, got["netwatch.handler.faults"]))
	assert.EqualValues(t, 1, sum(t, got["netwatch.cancel.failures"]))

	deactivated := got["netwatch.subscriptions.deactivated"].(metricdata.Sum[int64])
	state, ok := deactivated.DataPoints[0].Attributes.Value(stateKey)
	require.True(t, ok)
	assert.Equal(t, "faulted", state.AsString())
}

func TestNewUsesGlobalProvider(t *testing.T) {
	s, err := New(nil)
	require.NoError(t, err)
	s.Activated("connectivity")
}
