package repository

import (
	"context"
	"time"

	"wisefido-health/internal/models"
)

// MedicationStore 处方与服药记录存储
type MedicationStore interface {
	// 获取患者的有效处方
	GetActiveMedications(ctx context.Context, patientID string) ([]models.Medication, error)

	// 获取单个处方，不存在返回 nil, nil
	GetMedication(ctx context.Context, medicationID string) (*models.Medication, error)

	// 获取患者在 [window.Start, window.End) 内的服药记录，按计划时间升序
	GetDoseLogs(ctx context.Context, patientID string, window models.TimeWindow) ([]models.DoseLog, error)

	// 获取单条服药记录，不存在返回 nil, nil
	GetDoseLog(ctx context.Context, medicationID string, scheduledTime time.Time) (*models.DoseLog, error)

	// 写入服药记录（按 medication_id + scheduled_time 唯一）
	// 不存在则插入；已存在且为 Pending 时可更新为终态；已为终态时返回 ErrConflict
	// 以 Pending 重复写入已存在的记录为空操作
	UpsertDoseLog(ctx context.Context, log *models.DoseLog) error

	// 列出有有效处方的患者（调度器使用）
	ListPatientsWithActiveMedications(ctx context.Context) ([]string, error)
}
