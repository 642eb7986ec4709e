package telemetry

import (
	"context"
	"testing"

	"wisefido-health/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Sum[int64] {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Sum[int64])
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				out[m.Name] = sum
			}
		}
	}
	return out
}

func TestMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetricsWithProvider(mp)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordReading(ctx, ReadingAccepted)
	m.RecordReading(ctx, ReadingAccepted)
	m.RecordReading(ctx, ReadingRejected)
	m.RecordAlertRaised(ctx, models.SeverityCritical, "created")
	m.RecordAlertResolved(ctx)
	m.RecordDose(ctx, models.DoseStatusMissed)

	sums := collect(t, reader)

	readings := sums["health_readings_total"]
	require.Len(t, readings.DataPoints, 2)
	for _, dp := range readings.DataPoints {
		result, _ := dp.Attributes.Value(attribute.Key("result"))
		switch result.AsString() {
		case ReadingAccepted:
			assert.Equal(t, int64(2), dp.Value)
		case ReadingRejected:
			assert.Equal(t, int64(1), dp.Value)
		default:
			t.Errorf("unexpected result attribute %q", result.AsString())
		}
	}

	raised := sums["health_alerts_raised_total"]
	require.Len(t, raised.DataPoints, 1)
	severity, _ := raised.DataPoints[0].Attributes.Value(attribute.Key("severity"))
	assert.Equal(t, "Critical", severity.AsString())

	assert.Equal(t, int64(1), sums["health_alerts_resolved_total"].DataPoints[0].Value)
	assert.Equal(t, int64(1), sums["health_doses_total"].DataPoints[0].Value)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordReading(context.Background(), ReadingFailed)
		m.RecordAlertResolved(context.Background())
	})
}

func TestProvider_ShutdownNil(t *testing.T) {
	var p *Provider
	assert.NoError(t, p.Shutdown(context.Background()))
}
