package repository

import (
	"context"
	"time"

	"wisefido-health/internal/models"
)

// AlertStore 报警存储
// 同一 AlertKey 至多一条 Active 报警（由存储的唯一约束保证）
type AlertStore interface {
	// 获取该键的 Active 报警，不存在返回 nil, nil
	GetActive(ctx context.Context, key models.AlertKey) (*models.Alert, error)

	// 创建报警；该键已有 Active 报警时返回 ErrConflict
	Create(ctx context.Context, alert *models.Alert) error

	// 刷新 Active 报警的类型、描述、级别、触发值（保留 ID 与创建时间）
	// 报警不存在或已 resolve 时返回 *models.NotFoundError
	Refresh(ctx context.Context, alert *models.Alert) error

	// Resolve 报警；不存在返回 NotFoundError，已 resolve 返回 NotFoundError{AlreadyResolved: true}
	Resolve(ctx context.Context, alertID, resolvedBy string, resolvedAt time.Time) (*models.Alert, error)

	// 获取单个报警，不存在返回 nil, nil
	Get(ctx context.Context, alertID string) (*models.Alert, error)

	// 列出患者的报警（status 为空表示全部）
	ListByPatient(ctx context.Context, patientID string, status models.AlertStatus) ([]models.Alert, error)
}
