package evaluator

import (
	"fmt"
	"time"

	"wisefido-health/internal/models"
	"wisefido-health/internal/rules"
)

// Evaluator 体征评估器
// 无状态：每个越界字段独立产生一个报警候选
type Evaluator struct {
	rules *rules.Rules
}

// NewEvaluator 创建体征评估器
func NewEvaluator(r *rules.Rules) *Evaluator {
	return &Evaluator{rules: r}
}

// Evaluate 评估一条体征记录，返回报警候选列表（可能为空）
// ranges 中缺少的体征使用系统默认范围
func (e *Evaluator) Evaluate(reading *models.VitalReading, ranges map[models.VitalType]models.Range) []models.AlertCandidate {
	var candidates []models.AlertCandidate
	for _, v := range reading.Values() {
		rng, ok := ranges[v.Type]
		if !ok {
			rng = e.rules.DefaultRange(v.Type)
		}
		if c := e.EvaluateValue(reading.PatientID, v.Type, v.Value, rng, reading.RecordedAt); c != nil {
			candidates = append(candidates, *c)
		}
	}
	return candidates
}

// EvaluateValue 评估单个体征值
// 边界值不算越界；超过 max×倍数（或低于 min/倍数）为 Critical，否则为 High
func (e *Evaluator) EvaluateValue(patientID string, vt models.VitalType, value float64, rng models.Range, observedAt time.Time) *models.AlertCandidate {
	mult := e.rules.CriticalMultiplierFor(vt)

	var (
		high     bool
		bound    float64
		severity models.Severity
	)
	switch {
	case rng.Max != nil && value > *rng.Max:
		high = true
		bound = *rng.Max
		severity = models.SeverityHigh
		if value > bound*mult {
			severity = models.SeverityCritical
		}
	case rng.Min != nil && value < *rng.Min:
		bound = *rng.Min
		severity = models.SeverityHigh
		if value < bound/mult {
			severity = models.SeverityCritical
		}
	default:
		return nil
	}

	v := value
	b := bound
	return &models.AlertCandidate{
		Key:         models.VitalAlertKey(patientID, vt),
		AlertType:   alertType(vt, high),
		Description: describe(vt, value, bound, high),
		Severity:    severity,
		VitalType:   vt,
		Value:       &v,
		Bound:       &b,
		Range:       rng,
		ObservedAt:  observedAt,
	}
}

// MissedDoseCandidate 漏服报警候选
func (e *Evaluator) MissedDoseCandidate(med *models.Medication, dose *models.DoseLog) models.AlertCandidate {
	return models.AlertCandidate{
		Key:       models.MedicationAlertKey(dose.PatientID, dose.MedicationID),
		AlertType: models.AlertTypeMissedMedication,
		Description: fmt.Sprintf("%s %s scheduled at %s was not taken",
			med.Name, med.Dosage, dose.ScheduledTime.Format("2006-01-02 15:04")),
		Severity:   e.rules.MissedDoseSeverity,
		ObservedAt: dose.ScheduledTime,
	}
}

func alertType(vt models.VitalType, high bool) string {
	switch vt {
	case models.VitalSystolic, models.VitalDiastolic:
		if high {
			return models.AlertTypeHighBloodPressure
		}
		return models.AlertTypeLowBloodPressure
	case models.VitalHeartRate:
		if high {
			return models.AlertTypeHighHeartRate
		}
		return models.AlertTypeLowHeartRate
	case models.VitalGlucose:
		if high {
			return models.AlertTypeHighGlucose
		}
		return models.AlertTypeLowGlucose
	case models.VitalTemperature:
		if high {
			return models.AlertTypeHighTemperature
		}
		return models.AlertTypeLowTemperature
	}
	return string(vt)
}

func describe(vt models.VitalType, value, bound float64, high bool) string {
	var subject string
	switch vt {
	case models.VitalSystolic:
		subject = "Systolic reading"
	case models.VitalDiastolic:
		subject = "Diastolic reading"
	case models.VitalHeartRate:
		subject = "Heart rate"
	case models.VitalGlucose:
		subject = "Glucose level"
	case models.VitalTemperature:
		subject = "Temperature"
	default:
		subject = string(vt)
	}
	unit := vt.Unit()
	if high {
		return fmt.Sprintf("%s of %g %s exceeds threshold (max %g %s)", subject, value, unit, bound, unit)
	}
	return fmt.Sprintf("%s of %g %s below normal range (min %g %s)", subject, value, unit, bound, unit)
}
