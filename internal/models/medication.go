package models

import (
	"time"
)

// Medication 处方药品
// TimeOfDay 是权威服药时间表；Frequency 仅用于显示
type Medication struct {
	MedicationID string     `json:"medication_id" db:"medication_id"`
	PatientID    string     `json:"patient_id" db:"patient_id"`
	Name         string     `json:"name" db:"name"`
	Dosage       string     `json:"dosage" db:"dosage"`
	Frequency    string     `json:"frequency" db:"frequency"`
	TimeOfDay    []string   `json:"time_of_day" db:"time_of_day"` // "08:00", "20:00"
	StartDate    *time.Time `json:"start_date,omitempty" db:"start_date"`
	EndDate      *time.Time `json:"end_date,omitempty" db:"end_date"` // nil 表示长期
	Instructions string     `json:"instructions,omitempty" db:"instructions"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	PrescribedBy string     `json:"prescribed_by" db:"prescribed_by"`
}

// DoseStatus 服药状态（Pending 只能转为 Taken 或 Missed，不可回退）
type DoseStatus string

const (
	DoseStatusPending DoseStatus = "Pending"
	DoseStatusTaken   DoseStatus = "Taken"
	DoseStatusMissed  DoseStatus = "Missed"
)

// IsTerminal 是否为终态
func (s DoseStatus) IsTerminal() bool {
	return s == DoseStatusTaken || s == DoseStatusMissed
}

// DoseLog 单次服药记录（medication_id + scheduled_time 唯一）
type DoseLog struct {
	LogID         string     `json:"log_id" db:"log_id"`
	MedicationID  string     `json:"medication_id" db:"medication_id"`
	PatientID     string     `json:"patient_id" db:"patient_id"`
	ScheduledTime time.Time  `json:"scheduled_time" db:"scheduled_time"`
	TakenTime     *time.Time `json:"taken_time,omitempty" db:"taken_time"`
	Status        DoseStatus `json:"status" db:"status"`
}

// DoseKey 服药记录唯一键
type DoseKey struct {
	MedicationID  string
	ScheduledTime int64 // UnixNano，避免时区差异导致的 map 键不一致
}

// Key 服药记录唯一键
func (d *DoseLog) Key() DoseKey {
	return NewDoseKey(d.MedicationID, d.ScheduledTime)
}

// NewDoseKey 构造服药记录唯一键
func NewDoseKey(medicationID string, scheduled time.Time) DoseKey {
	return DoseKey{MedicationID: medicationID, ScheduledTime: scheduled.UnixNano()}
}

// TodayDose 当日服药项（药品 + 计划时间 + 有效状态）
type TodayDose struct {
	MedicationID  string     `json:"medication_id"`
	Name          string     `json:"name"`
	Dosage        string     `json:"dosage"`
	ScheduledTime time.Time  `json:"scheduled_time"`
	TakenTime     *time.Time `json:"taken_time,omitempty"`
	Status        DoseStatus `json:"status"`
	Due           bool       `json:"due"` // 已到时间且在宽限期内
}

// TimeWindow 时间窗口 [Start, End)
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// Contains 时间是否在窗口内
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}
