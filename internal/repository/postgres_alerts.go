package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wisefido-health/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// AlertCounter 按患者统计报警（可选能力，数据库实现直接聚合）
type AlertCounter interface {
	CountByPatients(ctx context.Context, patientIDs []string) (models.AlertCounts, error)
}

// PostgresAlertStore 报警仓库
type PostgresAlertStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresAlertStore 创建报警仓库
func NewPostgresAlertStore(db *sql.DB, logger *zap.Logger) *PostgresAlertStore {
	return &PostgresAlertStore{
		db:     db,
		logger: logger,
	}
}

var (
	_ AlertStore   = (*PostgresAlertStore)(nil)
	_ AlertCounter = (*PostgresAlertStore)(nil)
)

const alertColumns = `
	alert_id, patient_id, alert_key, alert_type, description, severity, status,
	trigger_value, created_at, updated_at, resolved_at, resolved_by
`

func scanAlert(row rowScanner) (*models.Alert, error) {
	var (
		a                models.Alert
		severity, status string
		triggerValue     sql.NullFloat64
		resolvedAt       sql.NullTime
		resolvedBy       sql.NullString
	)
	err := row.Scan(
		&a.AlertID,
		&a.PatientID,
		&a.AlertKey,
		&a.AlertType,
		&a.Description,
		&severity,
		&status,
		&triggerValue,
		&a.CreatedAt,
		&a.UpdatedAt,
		&resolvedAt,
		&resolvedBy,
	)
	if err != nil {
		return nil, err
	}
	a.Severity = models.Severity(severity)
	a.Status = models.AlertStatus(status)
	a.TriggerValue = nullFloat(triggerValue)
	a.ResolvedAt = nullTime(resolvedAt)
	a.ResolvedBy = nullString(resolvedBy)
	return &a, nil
}

// GetActive 获取该键的 Active 报警
func (r *PostgresAlertStore) GetActive(ctx context.Context, key models.AlertKey) (*models.Alert, error) {
	query := `SELECT ` + alertColumns + `
		FROM alerts
		WHERE patient_id = $1 AND alert_key = $2 AND status = 'Active'
	`
	a, err := scanAlert(r.db.QueryRowContext(ctx, query, key.PatientID, key.Subject))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query active alert: %w", err)
	}
	return a, nil
}

// Create 创建报警（部分唯一索引冲突 → ErrConflict）
func (r *PostgresAlertStore) Create(ctx context.Context, alert *models.Alert) error {
	query := `INSERT INTO alerts (` + alertColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		alert.AlertID,
		alert.PatientID,
		alert.AlertKey,
		alert.AlertType,
		alert.Description,
		string(alert.Severity),
		string(alert.Status),
		floatArg(alert.TriggerValue),
		alert.CreatedAt,
		alert.UpdatedAt,
		timeArg(alert.ResolvedAt),
		stringArg(alert.ResolvedBy),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("active alert exists for %s: %w", alert.Key(), models.ErrConflict)
		}
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// Refresh 刷新 Active 报警
func (r *PostgresAlertStore) Refresh(ctx context.Context, alert *models.Alert) error {
	query := `
		UPDATE alerts
		SET alert_type = $2, description = $3, severity = $4, trigger_value = $5, updated_at = $6
		WHERE alert_id = $1 AND status = 'Active'
	`
	result, err := r.db.ExecContext(ctx, query,
		alert.AlertID,
		alert.AlertType,
		alert.Description,
		string(alert.Severity),
		floatArg(alert.TriggerValue),
		alert.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to refresh alert: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return &models.NotFoundError{Resource: "alert", ID: alert.AlertID}
	}
	return nil
}

// Resolve Active → Resolved
func (r *PostgresAlertStore) Resolve(ctx context.Context, alertID, resolvedBy string, resolvedAt time.Time) (*models.Alert, error) {
	query := `
		UPDATE alerts
		SET status = 'Resolved', resolved_at = $2, resolved_by = $3, updated_at = $2
		WHERE alert_id = $1 AND status = 'Active'
		RETURNING ` + alertColumns

	a, err := scanAlert(r.db.QueryRowContext(ctx, query, alertID, resolvedAt, resolvedBy))
	if err == nil {
		return a, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to resolve alert: %w", err)
	}

	// 区分不存在与已 resolve
	var status string
	err = r.db.QueryRowContext(ctx, `SELECT status FROM alerts WHERE alert_id = $1`, alertID).Scan(&status)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &models.NotFoundError{Resource: "alert", ID: alertID}
		}
		return nil, fmt.Errorf("failed to query alert status: %w", err)
	}
	return nil, &models.NotFoundError{Resource: "alert", ID: alertID, AlreadyResolved: true}
}

// Get 获取单个报警
func (r *PostgresAlertStore) Get(ctx context.Context, alertID string) (*models.Alert, error) {
	a, err := scanAlert(r.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE alert_id = $1`, alertID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query alert: %w", err)
	}
	return a, nil
}

// ListByPatient 列出患者报警（最新在前）
func (r *PostgresAlertStore) ListByPatient(ctx context.Context, patientID string, status models.AlertStatus) ([]models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE patient_id = $1`
	args := []interface{}{patientID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}
	return alerts, nil
}

// CountByPatients 统计多个患者的 Active（按级别）与 Resolved 报警数量
func (r *PostgresAlertStore) CountByPatients(ctx context.Context, patientIDs []string) (models.AlertCounts, error) {
	var counts models.AlertCounts
	if len(patientIDs) == 0 {
		return counts, nil
	}

	query := `
		SELECT status, severity, COUNT(*)
		FROM alerts
		WHERE patient_id = ANY($1)
		GROUP BY status, severity
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(patientIDs))
	if err != nil {
		return counts, fmt.Errorf("failed to count alerts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status, severity string
			n                int
		)
		if err := rows.Scan(&status, &severity, &n); err != nil {
			return counts, fmt.Errorf("failed to scan alert count: %w", err)
		}
		if models.AlertStatus(status) == models.AlertStatusResolved {
			counts.Resolved += n
			continue
		}
		switch models.Severity(severity) {
		case models.SeverityCritical:
			counts.Critical += n
		case models.SeverityHigh:
			counts.High += n
		case models.SeverityMedium:
			counts.Medium += n
		case models.SeverityLow:
			counts.Low += n
		}
	}
	return counts, rows.Err()
}
