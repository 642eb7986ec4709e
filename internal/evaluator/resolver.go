package evaluator

import (
	"context"

	"wisefido-health/internal/models"
	"wisefido-health/internal/rules"

	"go.uber.org/zap"
)

// ThresholdGetter 阈值查询（由 repository.ThresholdStore 实现）
type ThresholdGetter interface {
	GetActive(ctx context.Context, patientID string, vitalType models.VitalType) (*models.Threshold, error)
}

// Resolver 阈值解析器
// 优先使用患者的 active 阈值；没有配置或查询失败时回退系统默认值，从不返回错误
type Resolver struct {
	store  ThresholdGetter
	rules  *rules.Rules
	logger *zap.Logger
}

// NewResolver 创建阈值解析器（store 可为 nil，此时总是使用默认值）
func NewResolver(store ThresholdGetter, r *rules.Rules, logger *zap.Logger) *Resolver {
	return &Resolver{
		store:  store,
		rules:  r,
		logger: logger,
	}
}

// Resolve 解析患者某一体征的阈值范围
func (r *Resolver) Resolve(ctx context.Context, patientID string, vitalType models.VitalType) models.Range {
	if r.store != nil {
		threshold, err := r.store.GetActive(ctx, patientID, vitalType)
		if err != nil {
			r.logger.Warn("Failed to get active threshold, using default",
				zap.String("patient_id", patientID),
				zap.String("vital_type", string(vitalType)),
				zap.Error(err),
			)
		} else if threshold != nil && threshold.IsActive {
			// 自定义阈值是权威的：缺省的一侧表示不设限
			return models.RangeOf(threshold)
		}
	}
	return r.rules.DefaultRange(vitalType)
}

// ResolveReading 解析记录中每个存在字段的阈值范围
func (r *Resolver) ResolveReading(ctx context.Context, reading *models.VitalReading) map[models.VitalType]models.Range {
	ranges := make(map[models.VitalType]models.Range)
	for _, v := range reading.Values() {
		ranges[v.Type] = r.Resolve(ctx, reading.PatientID, v.Type)
	}
	return ranges
}
