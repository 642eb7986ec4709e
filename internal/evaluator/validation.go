package evaluator

import (
	"fmt"
	"math"

	"wisefido-health/internal/models"
	"wisefido-health/internal/rules"
)

var vitalFieldNames = map[models.VitalType]string{
	models.VitalSystolic:    "systolic",
	models.VitalDiastolic:   "diastolic",
	models.VitalHeartRate:   "heart_rate",
	models.VitalGlucose:     "glucose",
	models.VitalTemperature: "temperature",
}

// ValidateReading 校验体征记录（在任何存储写入和评估之前调用）
func ValidateReading(reading *models.VitalReading, r *rules.Rules) error {
	if reading == nil {
		return &models.ValidationError{Reason: "reading is required"}
	}
	if reading.PatientID == "" {
		return &models.ValidationError{Field: "patient_id", Reason: "is required"}
	}
	if reading.RecordedAt.IsZero() {
		return &models.ValidationError{Field: "recorded_at", Reason: "is required"}
	}

	values := reading.Values()
	if len(values) == 0 {
		return &models.ValidationError{Reason: "reading has no vital values"}
	}

	for _, v := range values {
		field := vitalFieldNames[v.Type]
		if math.IsNaN(v.Value) || math.IsInf(v.Value, 0) {
			return &models.ValidationError{Field: field, Reason: "must be a finite number"}
		}
		if v.Value <= 0 {
			return &models.ValidationError{Field: field, Reason: "must be positive"}
		}
		b, ok := r.PlausibleBounds(v.Type)
		if !ok {
			continue
		}
		if b.Min != nil && v.Value < *b.Min {
			return &models.ValidationError{Field: field, Reason: fmt.Sprintf("must be at least %g", *b.Min)}
		}
		if b.Max != nil && v.Value > *b.Max {
			return &models.ValidationError{Field: field, Reason: fmt.Sprintf("must be at most %g", *b.Max)}
		}
	}

	if reading.Systolic != nil && reading.Diastolic != nil && *reading.Systolic <= *reading.Diastolic {
		return &models.ValidationError{Field: "systolic", Reason: "systolic must be higher than diastolic"}
	}

	return nil
}

// ValidateThreshold 校验阈值设置
func ValidateThreshold(t *models.Threshold) error {
	if t == nil {
		return &models.ValidationError{Reason: "threshold is required"}
	}
	if t.PatientID == "" {
		return &models.ValidationError{Field: "patient_id", Reason: "is required"}
	}
	if !t.VitalType.Valid() {
		return &models.ValidationError{Field: "vital_type", Reason: fmt.Sprintf("unknown vital type %q", t.VitalType)}
	}
	if t.Min == nil && t.Max == nil {
		return &models.ValidationError{Reason: "at least one of min or max is required"}
	}
	for name, p := range map[string]*float64{"min": t.Min, "max": t.Max} {
		if p != nil && (math.IsNaN(*p) || math.IsInf(*p, 0)) {
			return &models.ValidationError{Field: name, Reason: "must be a finite number"}
		}
	}
	if t.Min != nil && t.Max != nil && *t.Min > *t.Max {
		return &models.ValidationError{Field: "min", Reason: "min must not exceed max"}
	}
	return nil
}
