package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wisefido-health/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresMedicationStore 处方与服药记录仓库
type PostgresMedicationStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresMedicationStore 创建处方与服药记录仓库
func NewPostgresMedicationStore(db *sql.DB, logger *zap.Logger) *PostgresMedicationStore {
	return &PostgresMedicationStore{
		db:     db,
		logger: logger,
	}
}

var _ MedicationStore = (*PostgresMedicationStore)(nil)

const medicationColumns = `
	medication_id, patient_id, name, dosage, frequency, time_of_day,
	start_date, end_date, instructions, is_active, prescribed_by
`

func scanMedication(row rowScanner) (*models.Medication, error) {
	var (
		m                                     models.Medication
		timeOfDay                             pq.StringArray
		frequency, instructions, prescribedBy sql.NullString
		startDate, endDate                    sql.NullTime
	)
	err := row.Scan(
		&m.MedicationID,
		&m.PatientID,
		&m.Name,
		&m.Dosage,
		&frequency,
		&timeOfDay,
		&startDate,
		&endDate,
		&instructions,
		&m.IsActive,
		&prescribedBy,
	)
	if err != nil {
		return nil, err
	}
	m.Frequency = frequency.String
	m.TimeOfDay = []string(timeOfDay)
	m.StartDate = nullTime(startDate)
	m.EndDate = nullTime(endDate)
	m.Instructions = instructions.String
	m.PrescribedBy = prescribedBy.String
	return &m, nil
}

// SaveMedication 新增或更新处方
func (r *PostgresMedicationStore) SaveMedication(ctx context.Context, med *models.Medication) error {
	if med.MedicationID == "" {
		med.MedicationID = uuid.NewString()
	}
	query := `
		INSERT INTO medications (` + medicationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (medication_id) DO UPDATE SET
			name = EXCLUDED.name,
			dosage = EXCLUDED.dosage,
			frequency = EXCLUDED.frequency,
			time_of_day = EXCLUDED.time_of_day,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			instructions = EXCLUDED.instructions,
			is_active = EXCLUDED.is_active,
			prescribed_by = EXCLUDED.prescribed_by
	`
	_, err := r.db.ExecContext(ctx, query,
		med.MedicationID,
		med.PatientID,
		med.Name,
		med.Dosage,
		med.Frequency,
		pq.Array(med.TimeOfDay),
		timeArg(med.StartDate),
		timeArg(med.EndDate),
		med.Instructions,
		med.IsActive,
		med.PrescribedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to save medication: %w", err)
	}
	return nil
}

// GetActiveMedications 获取患者的有效处方
func (r *PostgresMedicationStore) GetActiveMedications(ctx context.Context, patientID string) ([]models.Medication, error) {
	query := `SELECT ` + medicationColumns + `
		FROM medications
		WHERE patient_id = $1 AND is_active = TRUE
		ORDER BY name
	`
	rows, err := r.db.QueryContext(ctx, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query medications: %w", err)
	}
	defer rows.Close()

	var meds []models.Medication
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan medication: %w", err)
		}
		meds = append(meds, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate medications: %w", err)
	}
	return meds, nil
}

// GetMedication 获取单个处方
func (r *PostgresMedicationStore) GetMedication(ctx context.Context, medicationID string) (*models.Medication, error) {
	query := `SELECT ` + medicationColumns + ` FROM medications WHERE medication_id = $1`
	m, err := scanMedication(r.db.QueryRowContext(ctx, query, medicationID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query medication: %w", err)
	}
	return m, nil
}

func scanDoseLog(row rowScanner) (*models.DoseLog, error) {
	var (
		l      models.DoseLog
		taken  sql.NullTime
		status string
	)
	if err := row.Scan(&l.LogID, &l.MedicationID, &l.PatientID, &l.ScheduledTime, &taken, &status); err != nil {
		return nil, err
	}
	l.TakenTime = nullTime(taken)
	l.Status = models.DoseStatus(status)
	return &l, nil
}

// GetDoseLogs 获取患者在窗口内的服药记录
func (r *PostgresMedicationStore) GetDoseLogs(ctx context.Context, patientID string, window models.TimeWindow) ([]models.DoseLog, error) {
	query := `
		SELECT log_id, medication_id, patient_id, scheduled_time, taken_time, status
		FROM dose_logs
		WHERE patient_id = $1 AND scheduled_time >= $2 AND scheduled_time < $3
		ORDER BY scheduled_time, medication_id
	`
	rows, err := r.db.QueryContext(ctx, query, patientID, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("failed to query dose_logs: %w", err)
	}
	defer rows.Close()

	var logs []models.DoseLog
	for rows.Next() {
		l, err := scanDoseLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dose_log: %w", err)
		}
		logs = append(logs, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dose_logs: %w", err)
	}
	return logs, nil
}

// GetDoseLog 获取单条服药记录
func (r *PostgresMedicationStore) GetDoseLog(ctx context.Context, medicationID string, scheduledTime time.Time) (*models.DoseLog, error) {
	query := `
		SELECT log_id, medication_id, patient_id, scheduled_time, taken_time, status
		FROM dose_logs
		WHERE medication_id = $1 AND scheduled_time = $2
	`
	l, err := scanDoseLog(r.db.QueryRowContext(ctx, query, medicationID, scheduledTime))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query dose_log: %w", err)
	}
	return l, nil
}

// UpsertDoseLog 写入服药记录
// ON CONFLICT 只允许 Pending → 终态；没有返回行表示未发生更新
func (r *PostgresMedicationStore) UpsertDoseLog(ctx context.Context, log *models.DoseLog) error {
	if log.LogID == "" {
		log.LogID = uuid.NewString()
	}

	query := `
		INSERT INTO dose_logs (log_id, medication_id, patient_id, scheduled_time, taken_time, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (medication_id, scheduled_time) DO UPDATE
		SET status = EXCLUDED.status, taken_time = EXCLUDED.taken_time
		WHERE dose_logs.status = 'Pending' AND EXCLUDED.status <> 'Pending'
		RETURNING log_id
	`
	var logID string
	err := r.db.QueryRowContext(ctx, query,
		log.LogID,
		log.MedicationID,
		log.PatientID,
		log.ScheduledTime,
		timeArg(log.TakenTime),
		string(log.Status),
	).Scan(&logID)
	if err != nil {
		if err == sql.ErrNoRows {
			if log.Status == models.DoseStatusPending {
				// 已存在，重复展开
				return nil
			}
			return &models.ConflictError{Resource: "dose", ID: log.MedicationID + "@" + log.ScheduledTime.Format(time.RFC3339), Reason: "dose already in terminal status"}
		}
		return fmt.Errorf("failed to upsert dose_log: %w", err)
	}
	log.LogID = logID
	return nil
}

// ListPatientsWithActiveMedications 列出有有效处方的患者
func (r *PostgresMedicationStore) ListPatientsWithActiveMedications(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT patient_id FROM medications WHERE is_active = TRUE ORDER BY patient_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query patients: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan patient_id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
