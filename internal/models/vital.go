package models

import (
	"time"
)

// VitalType 生命体征类型（封闭枚举）
type VitalType string

const (
	VitalSystolic    VitalType = "BloodPressureSystolic"
	VitalDiastolic   VitalType = "BloodPressureDiastolic"
	VitalHeartRate   VitalType = "HeartRate"
	VitalGlucose     VitalType = "Glucose"
	VitalTemperature VitalType = "Temperature"
)

// AllVitalTypes 按评估顺序排列的全部体征类型
var AllVitalTypes = []VitalType{
	VitalSystolic,
	VitalDiastolic,
	VitalHeartRate,
	VitalGlucose,
	VitalTemperature,
}

// Valid 是否为已知体征类型
func (v VitalType) Valid() bool {
	switch v {
	case VitalSystolic, VitalDiastolic, VitalHeartRate, VitalGlucose, VitalTemperature:
		return true
	}
	return false
}

// Unit 显示单位
func (v VitalType) Unit() string {
	switch v {
	case VitalSystolic, VitalDiastolic:
		return "mmHg"
	case VitalHeartRate:
		return "bpm"
	case VitalGlucose:
		return "mg/dL"
	case VitalTemperature:
		return "°F"
	}
	return ""
}

// ParseVitalType 解析体征类型字符串
func ParseVitalType(s string) (VitalType, error) {
	v := VitalType(s)
	if !v.Valid() {
		return "", &ValidationError{Field: "vital_type", Reason: "unknown vital type " + s}
	}
	return v, nil
}

// VitalReading 一次体征记录（记录后不可变；各字段可缺省）
type VitalReading struct {
	ReadingID   string    `json:"reading_id" db:"reading_id"`
	PatientID   string    `json:"patient_id" db:"patient_id"`
	RecordedAt  time.Time `json:"recorded_at" db:"recorded_at"`
	Systolic    *float64  `json:"systolic,omitempty" db:"systolic"`
	Diastolic   *float64  `json:"diastolic,omitempty" db:"diastolic"`
	HeartRate   *float64  `json:"heart_rate,omitempty" db:"heart_rate"`
	Glucose     *float64  `json:"glucose,omitempty" db:"glucose"`
	Temperature *float64  `json:"temperature,omitempty" db:"temperature"`
	Source      string    `json:"source,omitempty" db:"source"` // manual, mqtt, stream, portal
}

// VitalValue 记录中的单个体征值
type VitalValue struct {
	Type  VitalType
	Value float64
}

// Value 获取指定体征的值
func (r *VitalReading) Value(t VitalType) (float64, bool) {
	var p *float64
	switch t {
	case VitalSystolic:
		p = r.Systolic
	case VitalDiastolic:
		p = r.Diastolic
	case VitalHeartRate:
		p = r.HeartRate
	case VitalGlucose:
		p = r.Glucose
	case VitalTemperature:
		p = r.Temperature
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Values 记录中存在的体征值（按 AllVitalTypes 顺序）
func (r *VitalReading) Values() []VitalValue {
	values := make([]VitalValue, 0, len(AllVitalTypes))
	for _, t := range AllVitalTypes {
		if v, ok := r.Value(t); ok {
			values = append(values, VitalValue{Type: t, Value: v})
		}
	}
	return values
}

// Has 记录是否包含指定体征
func (r *VitalReading) Has(t VitalType) bool {
	_, ok := r.Value(t)
	return ok
}

// Float64Ptr 辅助函数
func Float64Ptr(v float64) *float64 {
	return &v
}
