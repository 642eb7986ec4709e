package evaluator

import (
	"wisefido-health/internal/models"
)

// Status 体征显示分级（仅供展示，不产生报警）
type Status string

const (
	StatusNormal       Status = "normal"
	StatusNearBoundary Status = "near_boundary"
	StatusBreach       Status = "breach"
)

// Classify 三级分级：越界 / 距边界 margin 以内 / 正常
func Classify(value float64, rng models.Range, margin float64) Status {
	if !rng.Contains(value) {
		return StatusBreach
	}
	if rng.Min != nil && value < *rng.Min+margin {
		return StatusNearBoundary
	}
	if rng.Max != nil && value > *rng.Max-margin {
		return StatusNearBoundary
	}
	return StatusNormal
}

// ClassifyReading 按规则中的边距对记录的每个字段分级
func (e *Evaluator) ClassifyReading(reading *models.VitalReading, ranges map[models.VitalType]models.Range) map[models.VitalType]Status {
	out := make(map[models.VitalType]Status)
	for _, v := range reading.Values() {
		rng, ok := ranges[v.Type]
		if !ok {
			rng = e.rules.DefaultRange(v.Type)
		}
		out[v.Type] = Classify(v.Value, rng, e.rules.NearBoundaryMargin)
	}
	return out
}
