package rules

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"wisefido-health/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	r := Default()
	require.NoError(t, r.Validate())

	hr := r.DefaultRange(models.VitalHeartRate)
	require.NotNil(t, hr.Min)
	require.NotNil(t, hr.Max)
	assert.Equal(t, 60.0, *hr.Min)
	assert.Equal(t, 100.0, *hr.Max)
	assert.Equal(t, models.RangeSourceDefault, hr.Source)

	sys := r.DefaultRange(models.VitalSystolic)
	assert.Equal(t, 110.0, *sys.Min)
	assert.Equal(t, 140.0, *sys.Max)

	dia := r.DefaultRange(models.VitalDiastolic)
	assert.Equal(t, 70.0, *dia.Min)
	assert.Equal(t, 90.0, *dia.Max)

	assert.Equal(t, 1.15, r.CriticalMultiplierFor(models.VitalSystolic))
	assert.Equal(t, 1.3, r.CriticalMultiplierFor(models.VitalGlucose))
	assert.Equal(t, 1.3, r.CriticalMultiplierFor(models.VitalHeartRate))
	assert.Equal(t, time.Hour, r.DoseGracePeriod)
	assert.Equal(t, models.SeverityMedium, r.MissedDoseSeverity)
}

func TestParse_OverridesKeepDefaults(t *testing.T) {
	data := []byte(`
critical_multiplier: 1.5
critical_multipliers:
  Glucose: 1.2
default_ranges:
  HeartRate:
    min: 50
    max: 110
dose_grace_period: 30m
missed_dose_severity: High
`)
	r, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, 1.5, r.CriticalMultiplierFor(models.VitalHeartRate))
	assert.Equal(t, 1.2, r.CriticalMultiplierFor(models.VitalGlucose))
	// 未覆盖的键保留默认
	assert.Equal(t, 1.15, r.CriticalMultiplierFor(models.VitalSystolic))

	hr := r.DefaultRange(models.VitalHeartRate)
	assert.Equal(t, 50.0, *hr.Min)
	assert.Equal(t, 110.0, *hr.Max)
	glucose := r.DefaultRange(models.VitalGlucose)
	assert.Equal(t, 70.0, *glucose.Min)

	assert.Equal(t, 30*time.Minute, r.DoseGracePeriod)
	assert.Equal(t, models.SeverityHigh, r.MissedDoseSeverity)
}

func TestParse_SingleBoundKeepsOtherSide(t *testing.T) {
	data := []byte(`
default_ranges:
  HeartRate:
    max: 110
  Glucose:
    min: 80
plausibility:
  Temperature:
    max: 110
`)
	r, err := Parse(data)
	require.NoError(t, err)

	hr := r.DefaultRange(models.VitalHeartRate)
	require.NotNil(t, hr.Min)
	assert.Equal(t, 60.0, *hr.Min)
	assert.Equal(t, 110.0, *hr.Max)

	glucose := r.DefaultRange(models.VitalGlucose)
	assert.Equal(t, 80.0, *glucose.Min)
	require.NotNil(t, glucose.Max)
	assert.Equal(t, 130.0, *glucose.Max)

	temp, ok := r.PlausibleBounds(models.VitalTemperature)
	require.True(t, ok)
	assert.Equal(t, 77.0, *temp.Min)
	assert.Equal(t, 110.0, *temp.Max)

	// 合并后仍然校验 min <= max
	_, err = Parse([]byte("default_ranges:\n  HeartRate:\n    min: 120\n"))
	assert.Error(t, err)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"multiplier not above one", "critical_multiplier: 1.0"},
		{"per type multiplier", "critical_multipliers:\n  HeartRate: 0.9"},
		{"min above max", "default_ranges:\n  Glucose:\n    min: 200\n    max: 100"},
		{"unknown vital", "default_ranges:\n  Weight:\n    min: 1\n    max: 2"},
		{"negative grace", "dose_grace_period: -5m"},
		{"unknown severity", "missed_dose_severity: Urgent"},
		{"malformed", "critical_multiplier: [1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("near_boundary_margin: 3\n"), 0o600))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3.0, r.NearBoundaryMargin)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
