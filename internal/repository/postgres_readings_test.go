package repository

import (
	"context"
	"testing"
	"time"

	"wisefido-health/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPostgresReadingStore_GetLatest(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresReadingStore(db, zap.NewNop())

	recorded := time.Now()
	rows := sqlmock.NewRows([]string{"reading_id", "patient_id", "recorded_at", "systolic", "diastolic", "heart_rate", "glucose", "temperature", "source"}).
		AddRow("r-1", "patient-1", recorded, 128.0, 82.0, nil, nil, nil, "manual")
	mock.ExpectQuery(`systolic IS NOT NULL`).
		WithArgs("patient-1").
		WillReturnRows(rows)

	reading, err := repo.GetLatest(context.Background(), "patient-1", models.VitalSystolic)

	require.NoError(t, err)
	require.NotNil(t, reading)
	assert.Equal(t, 128.0, *reading.Systolic)
	assert.Nil(t, reading.HeartRate)
	assert.Equal(t, "manual", reading.Source)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReadingStore_Append(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresReadingStore(db, zap.NewNop())

	recorded := time.Now()
	mock.ExpectExec(`INSERT INTO vital_readings`).
		WithArgs(sqlmock.AnyArg(), "patient-1", recorded, nil, nil, 72.0, nil, nil, "mqtt").
		WillReturnResult(sqlmock.NewResult(0, 1))

	hr := 72.0
	reading := &models.VitalReading{PatientID: "patient-1", RecordedAt: recorded, HeartRate: &hr, Source: "mqtt"}
	require.NoError(t, repo.Append(context.Background(), reading))
	assert.NotEmpty(t, reading.ReadingID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReadingStore_Append_DuplicateIgnored(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresReadingStore(db, zap.NewNop())

	recorded := time.Now()
	mock.ExpectExec(`INSERT INTO vital_readings .* ON CONFLICT \(reading_id\) DO NOTHING`).
		WithArgs("health:readings:1-0", "patient-1", recorded, nil, nil, 72.0, nil, nil, "").
		WillReturnResult(sqlmock.NewResult(0, 0))

	hr := 72.0
	reading := &models.VitalReading{ReadingID: "health:readings:1-0", PatientID: "patient-1", RecordedAt: recorded, HeartRate: &hr}
	require.NoError(t, repo.Append(context.Background(), reading))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReadingStore_GetLatest_UnknownVital(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresReadingStore(db, zap.NewNop())

	_, err = repo.GetLatest(context.Background(), "patient-1", models.VitalType("Weight"))
	assert.ErrorIs(t, err, models.ErrValidation)
	require.NoError(t, mock.ExpectationsWereMet())
}
