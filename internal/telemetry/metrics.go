package telemetry

import (
	"context"

	"wisefido-health/internal/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName 仪表名
const MeterName = "wisefido-health"

// 读数处理结果
const (
	ReadingAccepted = "accepted"
	ReadingRejected = "rejected"
	ReadingFailed   = "failed"
)

// Metrics 业务指标
type Metrics struct {
	ReadingsTotal       metric.Int64Counter
	AlertsRaisedTotal   metric.Int64Counter
	AlertsResolvedTotal metric.Int64Counter
	DosesTotal          metric.Int64Counter
}

// NewMetrics 使用全局 MeterProvider 创建指标（未初始化导出时为 no-op）
func NewMetrics() (*Metrics, error) {
	return NewMetricsWithProvider(otel.GetMeterProvider())
}

// NewMetricsWithProvider 使用指定 MeterProvider 创建指标
func NewMetricsWithProvider(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(MeterName)

	readingsTotal, err := meter.Int64Counter(
		"health_readings_total",
		metric.WithDescription("Total number of vital readings processed"),
		metric.WithUnit("{reading}"),
	)
	if err != nil {
		return nil, err
	}

	alertsRaisedTotal, err := meter.Int64Counter(
		"health_alerts_raised_total",
		metric.WithDescription("Total number of alert raise attempts by outcome"),
		metric.WithUnit("{alert}"),
	)
	if err != nil {
		return nil, err
	}

	alertsResolvedTotal, err := meter.Int64Counter(
		"health_alerts_resolved_total",
		metric.WithDescription("Total number of resolved alerts"),
		metric.WithUnit("{alert}"),
	)
	if err != nil {
		return nil, err
	}

	dosesTotal, err := meter.Int64Counter(
		"health_doses_total",
		metric.WithDescription("Total number of dose status transitions"),
		metric.WithUnit("{dose}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ReadingsTotal:       readingsTotal,
		AlertsRaisedTotal:   alertsRaisedTotal,
		AlertsResolvedTotal: alertsResolvedTotal,
		DosesTotal:          dosesTotal,
	}, nil
}

// RecordReading 记录读数处理结果
func (m *Metrics) RecordReading(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.ReadingsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordAlertRaised 记录报警触发
func (m *Metrics) RecordAlertRaised(ctx context.Context, severity models.Severity, outcome string) {
	if m == nil {
		return
	}
	m.AlertsRaisedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("severity", string(severity)),
		attribute.String("outcome", outcome),
	))
}

// RecordAlertResolved 记录报警解除
func (m *Metrics) RecordAlertResolved(ctx context.Context) {
	if m == nil {
		return
	}
	m.AlertsResolvedTotal.Add(ctx, 1)
}

// RecordDose 记录服药状态变更
func (m *Metrics) RecordDose(ctx context.Context, status models.DoseStatus) {
	if m == nil {
		return
	}
	m.DosesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(status))))
}
