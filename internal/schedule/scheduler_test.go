package schedule

import (
	"fmt"
	"testing"
	"time"

	"wisefido-health/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func timePtr(t time.Time) *time.Time {
	return &t
}

func twiceDaily() *models.Medication {
	return &models.Medication{
		MedicationID: "med-1",
		PatientID:    "patient-1",
		Name:         "Lisinopril",
		Dosage:       "10mg",
		Frequency:    "Twice daily",
		TimeOfDay:    []string{"08:00", "20:00"},
		StartDate:    timePtr(today),
		IsActive:     true,
	}
}

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("log-%d", n)
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("8:05")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay{Hour: 8, Minute: 5}, tod)
	assert.Equal(t, "08:05", tod.String())

	for _, bad := range []string{"", "24:00", "08:60", "0800", "ab:cd", "8:5"} {
		_, err := ParseTimeOfDay(bad)
		assert.ErrorIs(t, err, models.ErrValidation, bad)
	}
}

func TestParseTimeOfDayList(t *testing.T) {
	times, err := ParseTimeOfDayList([]string{"20:00", "08:00, 14:00", "08:00"})
	require.NoError(t, err)
	assert.Equal(t, []string{"08:00", "14:00", "20:00"}, FormatTimeOfDayList(times))
}

func TestExpand_TwoDaysTwoTimes(t *testing.T) {
	got, err := Expand(twiceDaily(), today, today.AddDate(0, 0, 1))
	require.NoError(t, err)

	assert.Equal(t, []time.Time{
		today.Add(8 * time.Hour),
		today.Add(20 * time.Hour),
		today.AddDate(0, 0, 1).Add(8 * time.Hour),
		today.AddDate(0, 0, 1).Add(20 * time.Hour),
	}, got)
}

func TestExpand_RespectsActiveRange(t *testing.T) {
	med := twiceDaily()
	med.StartDate = timePtr(today.AddDate(0, 0, 1))
	med.EndDate = timePtr(today.AddDate(0, 0, 2))

	got, err := Expand(med, today, today.AddDate(0, 0, 5))
	require.NoError(t, err)
	assert.Len(t, got, 4)
	assert.Equal(t, today.AddDate(0, 0, 1).Add(8*time.Hour), got[0])
	assert.Equal(t, today.AddDate(0, 0, 2).Add(20*time.Hour), got[3])

	med.IsActive = false
	got, err = Expand(med, today, today.AddDate(0, 0, 5))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExpand_InvalidTime(t *testing.T) {
	med := twiceDaily()
	med.TimeOfDay = []string{"morning"}
	_, err := Expand(med, today, today)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestExpand_Idempotent(t *testing.T) {
	a, err := Expand(twiceDaily(), today, today.AddDate(0, 0, 6))
	require.NoError(t, err)
	b, err := Expand(twiceDaily(), today, today.AddDate(0, 0, 6))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 14)
}

func TestMaterialize_DeduplicatesExisting(t *testing.T) {
	s := NewScheduler(time.Hour).WithIDGenerator(seqIDs())
	med := twiceDaily()

	first, err := s.Materialize(med, today, today.AddDate(0, 0, 1), nil)
	require.NoError(t, err)
	require.Len(t, first, 4)
	assert.Equal(t, "log-1", first[0].LogID)
	assert.Equal(t, models.DoseStatusPending, first[0].Status)
	assert.Equal(t, "patient-1", first[0].PatientID)

	second, err := s.Materialize(med, today, today.AddDate(0, 0, 1), first)
	require.NoError(t, err)
	assert.Empty(t, second)

	// 窗口扩大一天只补新的一天
	third, err := s.Materialize(med, today, today.AddDate(0, 0, 2), first)
	require.NoError(t, err)
	assert.Len(t, third, 2)
}

func TestEffectiveStatus_LazyMissed(t *testing.T) {
	s := NewScheduler(60 * time.Minute)
	scheduled := today.Add(8 * time.Hour)
	log := &models.DoseLog{MedicationID: "med-1", ScheduledTime: scheduled, Status: models.DoseStatusPending}

	assert.Equal(t, models.DoseStatusPending, s.EffectiveStatus(log, scheduled.Add(-time.Minute)))
	assert.False(t, s.IsDue(log, scheduled.Add(-time.Minute)))

	assert.Equal(t, models.DoseStatusPending, s.EffectiveStatus(log, scheduled.Add(59*time.Minute)))
	assert.True(t, s.IsDue(log, scheduled))

	assert.Equal(t, models.DoseStatusMissed, s.EffectiveStatus(log, scheduled.Add(60*time.Minute)))
	assert.False(t, s.IsDue(log, scheduled.Add(60*time.Minute)))

	taken := &models.DoseLog{ScheduledTime: scheduled, Status: models.DoseStatusTaken}
	assert.Equal(t, models.DoseStatusTaken, s.EffectiveStatus(taken, scheduled.Add(5*time.Hour)))
}

func TestOverdue(t *testing.T) {
	s := NewScheduler(time.Hour)
	logs := []models.DoseLog{
		{LogID: "a", ScheduledTime: today.Add(8 * time.Hour), Status: models.DoseStatusPending},
		{LogID: "b", ScheduledTime: today.Add(8 * time.Hour), Status: models.DoseStatusTaken},
		{LogID: "c", ScheduledTime: today.Add(20 * time.Hour), Status: models.DoseStatusPending},
	}

	overdue := s.Overdue(logs, today.Add(12*time.Hour))
	require.Len(t, overdue, 1)
	assert.Equal(t, "a", overdue[0].LogID)
	assert.Equal(t, models.DoseStatusMissed, overdue[0].Status)
	// 原切片不被修改
	assert.Equal(t, models.DoseStatusPending, logs[0].Status)

	due := s.Due(logs, today.Add(20*time.Hour+10*time.Minute))
	require.Len(t, due, 1)
	assert.Equal(t, "c", due[0].LogID)
}

func TestMarkTaken(t *testing.T) {
	s := NewScheduler(time.Hour)
	scheduled := today.Add(8 * time.Hour)
	pending := models.DoseLog{LogID: "a", ScheduledTime: scheduled, Status: models.DoseStatusPending}

	now := scheduled.Add(10 * time.Minute)
	taken, err := s.MarkTaken(pending, now)
	require.NoError(t, err)
	assert.Equal(t, models.DoseStatusTaken, taken.Status)
	require.NotNil(t, taken.TakenTime)
	assert.Equal(t, now, *taken.TakenTime)

	_, err = s.MarkTaken(taken, now)
	assert.ErrorIs(t, err, models.ErrConflict)

	_, err = s.MarkTaken(pending, scheduled.Add(2*time.Hour))
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestMarkMissed(t *testing.T) {
	s := NewScheduler(time.Hour)
	pending := models.DoseLog{LogID: "a", ScheduledTime: today, Status: models.DoseStatusPending}

	missed, err := s.MarkMissed(pending)
	require.NoError(t, err)
	assert.Equal(t, models.DoseStatusMissed, missed.Status)

	_, err = s.MarkMissed(missed)
	assert.ErrorIs(t, err, models.ErrConflict)

	taken := models.DoseLog{LogID: "b", Status: models.DoseStatusTaken}
	_, err = s.MarkMissed(taken)
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestToday(t *testing.T) {
	s := NewScheduler(time.Hour)
	meds := []models.Medication{*twiceDaily()}
	logs := []models.DoseLog{
		{LogID: "a", MedicationID: "med-1", ScheduledTime: today.Add(8 * time.Hour), Status: models.DoseStatusTaken, TakenTime: timePtr(today.Add(8 * time.Hour))},
	}

	doses, err := s.Today(meds, logs, today.Add(20*time.Hour+5*time.Minute))
	require.NoError(t, err)
	require.Len(t, doses, 2)
	assert.Equal(t, models.DoseStatusTaken, doses[0].Status)
	assert.NotNil(t, doses[0].TakenTime)
	assert.Equal(t, models.DoseStatusPending, doses[1].Status)
	assert.True(t, doses[1].Due)
}

func TestDropDiscontinued(t *testing.T) {
	active := twiceDaily()
	stopped := twiceDaily()
	stopped.MedicationID = "med-2"
	stopped.IsActive = false
	ended := twiceDaily()
	ended.MedicationID = "med-3"
	ended.EndDate = timePtr(today)

	at := today.AddDate(0, 0, 1).Add(8 * time.Hour)
	logs := []models.DoseLog{
		{LogID: "a", MedicationID: "med-1", ScheduledTime: at, Status: models.DoseStatusPending},
		{LogID: "b", MedicationID: "med-2", ScheduledTime: at, Status: models.DoseStatusPending},
		{LogID: "c", MedicationID: "med-2", ScheduledTime: today.Add(8 * time.Hour), Status: models.DoseStatusTaken},
		{LogID: "d", MedicationID: "med-3", ScheduledTime: at, Status: models.DoseStatusPending},
		{LogID: "e", MedicationID: "med-3", ScheduledTime: today.Add(8 * time.Hour), Status: models.DoseStatusPending},
		{LogID: "f", MedicationID: "med-gone", ScheduledTime: at, Status: models.DoseStatusPending},
	}
	meds := map[string]*models.Medication{"med-1": active, "med-2": stopped, "med-3": ended}

	kept := DropDiscontinued(logs, meds)
	var ids []string
	for _, l := range kept {
		ids = append(ids, l.LogID)
	}
	assert.Equal(t, []string{"a", "c", "e"}, ids)

	// 停用后的记录不再被视为漏服
	s := NewScheduler(time.Hour)
	assert.Len(t, s.Overdue(kept, at.Add(24*time.Hour)), 2)
}
