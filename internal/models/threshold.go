package models

import (
	"time"
)

// Threshold 患者某一体征的阈值（同一 patient + vital_type 至多一条 active）
type Threshold struct {
	ThresholdID string    `json:"threshold_id" db:"threshold_id"`
	PatientID   string    `json:"patient_id" db:"patient_id"`
	VitalType   VitalType `json:"vital_type" db:"vital_type"`
	Min         *float64  `json:"min,omitempty" db:"min_value"`
	Max         *float64  `json:"max,omitempty" db:"max_value"`
	SetBy       string    `json:"set_by" db:"set_by"` // 医生ID
	SetAt       time.Time `json:"set_at" db:"set_at"`
	IsActive    bool      `json:"is_active" db:"is_active"`
}

// RangeSource 阈值来源
type RangeSource string

const (
	RangeSourceCustom  RangeSource = "custom"
	RangeSourceDefault RangeSource = "default"
)

// Range 解析后的阈值范围（边界可缺省，缺省表示该侧不设限）
type Range struct {
	Min    *float64    `json:"min,omitempty"`
	Max    *float64    `json:"max,omitempty"`
	Source RangeSource `json:"source"`
}

// Contains 值是否在范围内（边界值不算越界）
func (r Range) Contains(v float64) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

// RangeOf 由阈值行构造范围
func RangeOf(t *Threshold) Range {
	return Range{Min: t.Min, Max: t.Max, Source: RangeSourceCustom}
}
