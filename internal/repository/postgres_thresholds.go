package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wisefido-health/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PostgresThresholdStore 阈值仓库
type PostgresThresholdStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresThresholdStore 创建阈值仓库
func NewPostgresThresholdStore(db *sql.DB, logger *zap.Logger) *PostgresThresholdStore {
	return &PostgresThresholdStore{
		db:     db,
		logger: logger,
	}
}

var _ ThresholdStore = (*PostgresThresholdStore)(nil)

// GetActive 获取 active 阈值
func (r *PostgresThresholdStore) GetActive(ctx context.Context, patientID string, vitalType models.VitalType) (*models.Threshold, error) {
	query := `
		SELECT threshold_id, patient_id, vital_type, min_value, max_value, set_by, set_at, is_active
		FROM alert_thresholds
		WHERE patient_id = $1 AND vital_type = $2 AND is_active = TRUE
	`

	var (
		t        models.Threshold
		vt       string
		min, max sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, query, patientID, string(vitalType)).Scan(
		&t.ThresholdID,
		&t.PatientID,
		&vt,
		&min,
		&max,
		&t.SetBy,
		&t.SetAt,
		&t.IsActive,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query alert_thresholds: %w", err)
	}

	t.VitalType = models.VitalType(vt)
	t.Min = nullFloat(min)
	t.Max = nullFloat(max)
	return &t, nil
}

// SetActive 停用旧阈值并写入新阈值（同一事务）
func (r *PostgresThresholdStore) SetActive(ctx context.Context, threshold *models.Threshold) error {
	if threshold.ThresholdID == "" {
		threshold.ThresholdID = uuid.NewString()
	}
	if threshold.SetAt.IsZero() {
		threshold.SetAt = time.Now()
	}
	threshold.IsActive = true

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE alert_thresholds
		SET is_active = FALSE
		WHERE patient_id = $1 AND vital_type = $2 AND is_active = TRUE
	`, threshold.PatientID, string(threshold.VitalType))
	if err != nil {
		return fmt.Errorf("failed to deactivate previous threshold: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO alert_thresholds (
			threshold_id, patient_id, vital_type, min_value, max_value, set_by, set_at, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
	`,
		threshold.ThresholdID,
		threshold.PatientID,
		string(threshold.VitalType),
		floatArg(threshold.Min),
		floatArg(threshold.Max),
		threshold.SetBy,
		threshold.SetAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("concurrent threshold update for %s/%s: %w", threshold.PatientID, threshold.VitalType, models.ErrConflict)
		}
		return fmt.Errorf("failed to insert threshold: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit threshold: %w", err)
	}

	r.logger.Info("Threshold updated",
		zap.String("patient_id", threshold.PatientID),
		zap.String("vital_type", string(threshold.VitalType)),
		zap.String("set_by", threshold.SetBy),
	)
	return nil
}
