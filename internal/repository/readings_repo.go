package repository

import (
	"context"

	"wisefido-health/internal/models"
)

// ReadingStore 体征记录存储（只追加）
type ReadingStore interface {
	// 获取患者包含指定体征的最新记录，不存在返回 nil, nil
	GetLatest(ctx context.Context, patientID string, vitalType models.VitalType) (*models.VitalReading, error)

	// 追加一条体征记录（ReadingID 为空时由存储生成）
	Append(ctx context.Context, reading *models.VitalReading) error
}
