package repository

import (
	"context"

	"wisefido-health/internal/models"
)

// ThresholdStore 阈值存储
// 同一 (patient_id, vital_type) 至多一条 active 阈值
type ThresholdStore interface {
	// 获取 active 阈值，不存在返回 nil, nil
	GetActive(ctx context.Context, patientID string, vitalType models.VitalType) (*models.Threshold, error)

	// 设置新的 active 阈值（同时停用旧阈值）
	SetActive(ctx context.Context, threshold *models.Threshold) error
}
