package models

import (
	"fmt"
	"time"
)

// Severity 报警级别
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// Rank 级别排序值（越大越严重，未知级别为 0）
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// Valid 是否为已知级别
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// AlertStatus 报警状态
type AlertStatus string

const (
	AlertStatusActive   AlertStatus = "Active"
	AlertStatusResolved AlertStatus = "Resolved"
)

// 报警类型标签
const (
	AlertTypeHighBloodPressure = "High Blood Pressure"
	AlertTypeLowBloodPressure  = "Low Blood Pressure"
	AlertTypeHighHeartRate     = "High Heart Rate"
	AlertTypeLowHeartRate      = "Low Heart Rate"
	AlertTypeHighGlucose       = "High Glucose"
	AlertTypeLowGlucose        = "Low Glucose"
	AlertTypeHighTemperature   = "High Temperature"
	AlertTypeLowTemperature    = "Low Temperature"
	AlertTypeMissedMedication  = "Missed Medication"
)

const (
	alertKeyVitalPrefix      = "vital:"
	alertKeyMedicationPrefix = "medication:"
)

// AlertKey 报警去重键（患者 + 体征类型 或 患者 + 药品）
// 同一键同一时刻至多一条 Active 报警
type AlertKey struct {
	PatientID string
	Subject   string // "vital:<VitalType>" 或 "medication:<medicationID>"
}

// VitalAlertKey 体征报警键
func VitalAlertKey(patientID string, vt VitalType) AlertKey {
	return AlertKey{PatientID: patientID, Subject: alertKeyVitalPrefix + string(vt)}
}

// MedicationAlertKey 漏服报警键
func MedicationAlertKey(patientID, medicationID string) AlertKey {
	return AlertKey{PatientID: patientID, Subject: alertKeyMedicationPrefix + medicationID}
}

func (k AlertKey) String() string {
	return fmt.Sprintf("%s/%s", k.PatientID, k.Subject)
}

// Alert 报警记录（仅由引擎创建，仅由医生显式 resolve）
type Alert struct {
	AlertID      string      `json:"alert_id" db:"alert_id"`
	PatientID    string      `json:"patient_id" db:"patient_id"`
	AlertKey     string      `json:"alert_key" db:"alert_key"` // AlertKey.Subject
	AlertType    string      `json:"alert_type" db:"alert_type"`
	Description  string      `json:"description" db:"description"`
	Severity     Severity    `json:"severity" db:"severity"`
	Status       AlertStatus `json:"status" db:"status"`
	TriggerValue *float64    `json:"trigger_value,omitempty" db:"trigger_value"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
	ResolvedAt   *time.Time  `json:"resolved_at,omitempty" db:"resolved_at"`
	ResolvedBy   *string     `json:"resolved_by,omitempty" db:"resolved_by"`
}

// Key 报警去重键
func (a *Alert) Key() AlertKey {
	return AlertKey{PatientID: a.PatientID, Subject: a.AlertKey}
}

// IsActive 是否仍为 Active
func (a *Alert) IsActive() bool {
	return a.Status == AlertStatusActive
}

// AlertCandidate 评估产生的报警候选（尚未落库）
type AlertCandidate struct {
	Key         AlertKey
	AlertType   string
	Description string
	Severity    Severity
	VitalType   VitalType // 漏服报警为空
	Value       *float64
	Bound       *float64 // 被突破的边界
	Range       Range
	ObservedAt  time.Time
}

// AlertCounts 报警统计
type AlertCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Resolved int `json:"resolved"`
}

// Add 计入一条报警
func (c *AlertCounts) Add(a *Alert) {
	if a.Status == AlertStatusResolved {
		c.Resolved++
		return
	}
	switch a.Severity {
	case SeverityCritical:
		c.Critical++
	case SeverityHigh:
		c.High++
	case SeverityMedium:
		c.Medium++
	case SeverityLow:
		c.Low++
	}
}

// ActiveTotal Active 报警总数
func (c AlertCounts) ActiveTotal() int {
	return c.Critical + c.High + c.Medium + c.Low
}
