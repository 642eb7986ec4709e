package publisher

import (
	"context"
	"time"

	"wisefido-health/internal/models"

	"github.com/google/uuid"
)

// 事件类型（同时作为 RabbitMQ routing key）
const (
	EventAlertRaised    = "alert.raised"
	EventAlertRefreshed = "alert.refreshed"
	EventAlertResolved  = "alert.resolved"
	EventDoseMissed     = "dose.missed"
)

// ServiceName 事件来源服务
const ServiceName = "wisefido-health"

// Publisher 领域事件发布器
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload interface{}) error
	Close() error
}

// Event 事件信封
type Event struct {
	EventType   string      `json:"event_type"`
	EventID     string      `json:"event_id"`
	Timestamp   time.Time   `json:"timestamp"`
	ServiceName string      `json:"service_name"`
	Data        interface{} `json:"data"`
}

// NewEvent 创建事件信封
func NewEvent(eventType string, payload interface{}) Event {
	return Event{
		EventType:   eventType,
		EventID:     uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		ServiceName: ServiceName,
		Data:        payload,
	}
}

// AlertEvent 报警事件负载
type AlertEvent struct {
	AlertID      string          `json:"alert_id"`
	PatientID    string          `json:"patient_id"`
	AlertKey     string          `json:"alert_key"`
	AlertType    string          `json:"alert_type"`
	Severity     models.Severity `json:"severity"`
	Status       string          `json:"status"`
	Description  string          `json:"description"`
	TriggerValue *float64        `json:"trigger_value,omitempty"`
	ResolvedBy   *string         `json:"resolved_by,omitempty"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

// NewAlertEvent 由报警构造事件负载
func NewAlertEvent(a *models.Alert) AlertEvent {
	occurred := a.UpdatedAt
	if a.ResolvedAt != nil {
		occurred = *a.ResolvedAt
	}
	return AlertEvent{
		AlertID:      a.AlertID,
		PatientID:    a.PatientID,
		AlertKey:     a.AlertKey,
		AlertType:    a.AlertType,
		Severity:     a.Severity,
		Status:       string(a.Status),
		Description:  a.Description,
		TriggerValue: a.TriggerValue,
		ResolvedBy:   a.ResolvedBy,
		OccurredAt:   occurred,
	}
}

// DoseEvent 服药事件负载
type DoseEvent struct {
	LogID         string    `json:"log_id"`
	MedicationID  string    `json:"medication_id"`
	PatientID     string    `json:"patient_id"`
	ScheduledTime time.Time `json:"scheduled_time"`
	Status        string    `json:"status"`
}

// NewDoseEvent 由服药记录构造事件负载
func NewDoseEvent(log *models.DoseLog) DoseEvent {
	return DoseEvent{
		LogID:         log.LogID,
		MedicationID:  log.MedicationID,
		PatientID:     log.PatientID,
		ScheduledTime: log.ScheduledTime,
		Status:        string(log.Status),
	}
}

// NoopPublisher 不发布任何事件
type NoopPublisher struct{}

// Publish 丢弃事件
func (NoopPublisher) Publish(ctx context.Context, eventType string, payload interface{}) error {
	return nil
}

// Close 无资源
func (NoopPublisher) Close() error { return nil }

var _ Publisher = NoopPublisher{}
