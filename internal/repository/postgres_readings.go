package repository

import (
	"context"
	"database/sql"
	"fmt"

	"wisefido-health/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// vitalColumns 体征类型 → 列名
var vitalColumns = map[models.VitalType]string{
	models.VitalSystolic:    "systolic",
	models.VitalDiastolic:   "diastolic",
	models.VitalHeartRate:   "heart_rate",
	models.VitalGlucose:     "glucose",
	models.VitalTemperature: "temperature",
}

// PostgresReadingStore 体征记录仓库
type PostgresReadingStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresReadingStore 创建体征记录仓库
func NewPostgresReadingStore(db *sql.DB, logger *zap.Logger) *PostgresReadingStore {
	return &PostgresReadingStore{
		db:     db,
		logger: logger,
	}
}

var _ ReadingStore = (*PostgresReadingStore)(nil)

// GetLatest 获取包含指定体征的最新记录
func (r *PostgresReadingStore) GetLatest(ctx context.Context, patientID string, vitalType models.VitalType) (*models.VitalReading, error) {
	column, ok := vitalColumns[vitalType]
	if !ok {
		return nil, &models.ValidationError{Field: "vital_type", Reason: "unknown vital type " + string(vitalType)}
	}

	query := fmt.Sprintf(`
		SELECT reading_id, patient_id, recorded_at,
		       systolic, diastolic, heart_rate, glucose, temperature, source
		FROM vital_readings
		WHERE patient_id = $1 AND %s IS NOT NULL
		ORDER BY recorded_at DESC
		LIMIT 1
	`, column)

	var (
		reading                                              models.VitalReading
		systolic, diastolic, heartRate, glucose, temperature sql.NullFloat64
		source                                               sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, patientID).Scan(
		&reading.ReadingID,
		&reading.PatientID,
		&reading.RecordedAt,
		&systolic,
		&diastolic,
		&heartRate,
		&glucose,
		&temperature,
		&source,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest vital reading: %w", err)
	}

	reading.Systolic = nullFloat(systolic)
	reading.Diastolic = nullFloat(diastolic)
	reading.HeartRate = nullFloat(heartRate)
	reading.Glucose = nullFloat(glucose)
	reading.Temperature = nullFloat(temperature)
	reading.Source = source.String
	return &reading, nil
}

// Append 追加体征记录；reading_id 已存在时忽略
func (r *PostgresReadingStore) Append(ctx context.Context, reading *models.VitalReading) error {
	if reading.ReadingID == "" {
		reading.ReadingID = uuid.NewString()
	}

	query := `
		INSERT INTO vital_readings (
			reading_id, patient_id, recorded_at,
			systolic, diastolic, heart_rate, glucose, temperature, source
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (reading_id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		reading.ReadingID,
		reading.PatientID,
		reading.RecordedAt,
		floatArg(reading.Systolic),
		floatArg(reading.Diastolic),
		floatArg(reading.HeartRate),
		floatArg(reading.Glucose),
		floatArg(reading.Temperature),
		reading.Source,
	)
	if err != nil {
		return fmt.Errorf("failed to insert vital reading: %w", err)
	}

	r.logger.Debug("Vital reading appended",
		zap.String("reading_id", reading.ReadingID),
		zap.String("patient_id", reading.PatientID),
	)
	return nil
}
