package repository

import (
	"context"
	"testing"
	"time"

	"wisefido-health/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryMedicationStore_UpsertDoseLog(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryMedicationStore()
	scheduled := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	pending := &models.DoseLog{MedicationID: "med-1", PatientID: "patient-1", ScheduledTime: scheduled, Status: models.DoseStatusPending}
	require.NoError(t, store.UpsertDoseLog(ctx, pending))
	require.NotEmpty(t, pending.LogID)

	// 重复写入 Pending 为空操作
	dup := &models.DoseLog{MedicationID: "med-1", PatientID: "patient-1", ScheduledTime: scheduled, Status: models.DoseStatusPending}
	require.NoError(t, store.UpsertDoseLog(ctx, dup))
	assert.Equal(t, pending.LogID, dup.LogID)

	taken := scheduled.Add(5 * time.Minute)
	require.NoError(t, store.UpsertDoseLog(ctx, &models.DoseLog{
		MedicationID: "med-1", PatientID: "patient-1", ScheduledTime: scheduled, TakenTime: &taken, Status: models.DoseStatusTaken,
	}))

	err := store.UpsertDoseLog(ctx, &models.DoseLog{
		MedicationID: "med-1", PatientID: "patient-1", ScheduledTime: scheduled, Status: models.DoseStatusMissed,
	})
	assert.ErrorIs(t, err, models.ErrConflict)

	// 再以 Pending 写入不会回退状态
	require.NoError(t, store.UpsertDoseLog(ctx, &models.DoseLog{
		MedicationID: "med-1", PatientID: "patient-1", ScheduledTime: scheduled, Status: models.DoseStatusPending,
	}))
	log, err := store.GetDoseLog(ctx, "med-1", scheduled)
	require.NoError(t, err)
	assert.Equal(t, models.DoseStatusTaken, log.Status)
	assert.Equal(t, taken, *log.TakenTime)

	logs, err := store.GetDoseLogs(ctx, "patient-1", models.TimeWindow{Start: scheduled, End: scheduled.Add(time.Hour)})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestMemoryThresholdStore_SetActiveDeactivatesPrior(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryThresholdStore()
	a, b := 140.0, 130.0

	require.NoError(t, store.SetActive(ctx, &models.Threshold{PatientID: "p", VitalType: models.VitalSystolic, Max: &a}))
	require.NoError(t, store.SetActive(ctx, &models.Threshold{PatientID: "p", VitalType: models.VitalSystolic, Max: &b}))

	th, err := store.GetActive(ctx, "p", models.VitalSystolic)
	require.NoError(t, err)
	assert.Equal(t, 130.0, *th.Max)
	assert.True(t, th.IsActive)

	history := store.History()
	require.Len(t, history, 1)
	assert.False(t, history[0].IsActive)
	assert.Equal(t, 140.0, *history[0].Max)
}

func TestMemoryReadingStore_GetLatest(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryReadingStore()
	base := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	v1, v2, g := 120.0, 130.0, 95.0

	require.NoError(t, store.Append(ctx, &models.VitalReading{PatientID: "p", RecordedAt: base, Systolic: &v1}))
	require.NoError(t, store.Append(ctx, &models.VitalReading{PatientID: "p", RecordedAt: base.Add(time.Hour), Systolic: &v2}))
	require.NoError(t, store.Append(ctx, &models.VitalReading{PatientID: "p", RecordedAt: base.Add(2 * time.Hour), Glucose: &g}))

	latest, err := store.GetLatest(ctx, "p", models.VitalSystolic)
	require.NoError(t, err)
	assert.Equal(t, 130.0, *latest.Systolic)

	none, err := store.GetLatest(ctx, "p", models.VitalTemperature)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestMemoryReadingStore_AppendSameIDOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryReadingStore()
	base := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	v1, v2 := 120.0, 180.0

	require.NoError(t, store.Append(ctx, &models.VitalReading{ReadingID: "r1", PatientID: "p", RecordedAt: base, Systolic: &v1}))
	require.NoError(t, store.Append(ctx, &models.VitalReading{ReadingID: "r1", PatientID: "p", RecordedAt: base.Add(time.Hour), Systolic: &v2}))

	latest, err := store.GetLatest(ctx, "p", models.VitalSystolic)
	require.NoError(t, err)
	assert.Equal(t, 120.0, *latest.Systolic)
	assert.Equal(t, base, latest.RecordedAt)
}
