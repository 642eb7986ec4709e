package portalapi

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"wisefido-health/internal/models"
	"wisefido-health/internal/repository"
)

// VitalRecordDto 门户体征记录
type VitalRecordDto struct {
	RecordID               int64     `json:"recordId"`
	PatientID              int64     `json:"patientId"`
	BloodPressureSystolic  *float64  `json:"bloodPressureSystolic,omitempty"`
	BloodPressureDiastolic *float64  `json:"bloodPressureDiastolic,omitempty"`
	HeartRate              *float64  `json:"heartRate,omitempty"`
	GlucoseLevel           *float64  `json:"glucoseLevel,omitempty"`
	Temperature            *float64  `json:"temperature,omitempty"`
	DateLogged             time.Time `json:"dateLogged"`
}

// VitalRecordListDto 门户体征记录列表
type VitalRecordListDto struct {
	PatientID  int64            `json:"patientId"`
	Records    []VitalRecordDto `json:"records"`
	TotalCount int              `json:"totalCount"`
}

// LogVitalRecordRequest 记录体征请求
type LogVitalRecordRequest struct {
	PatientID              int64      `json:"patientId"`
	BloodPressureSystolic  *float64   `json:"bloodPressureSystolic,omitempty"`
	BloodPressureDiastolic *float64   `json:"bloodPressureDiastolic,omitempty"`
	HeartRate              *float64   `json:"heartRate,omitempty"`
	GlucoseLevel           *float64   `json:"glucoseLevel,omitempty"`
	Temperature            *float64   `json:"temperature,omitempty"`
	DateLogged             *time.Time `json:"dateLogged,omitempty"`
}

var _ repository.ReadingStore = (*Client)(nil)

func (d *VitalRecordDto) toReading() models.VitalReading {
	return models.VitalReading{
		ReadingID:   strconv.FormatInt(d.RecordID, 10),
		PatientID:   strconv.FormatInt(d.PatientID, 10),
		RecordedAt:  d.DateLogged,
		Systolic:    d.BloodPressureSystolic,
		Diastolic:   d.BloodPressureDiastolic,
		HeartRate:   d.HeartRate,
		Glucose:     d.GlucoseLevel,
		Temperature: d.Temperature,
		Source:      "portal",
	}
}

// GetLatest 最新的包含指定体征的记录
func (c *Client) GetLatest(ctx context.Context, patientID string, vitalType models.VitalType) (*models.VitalReading, error) {
	id, err := portalID("patient_id", patientID)
	if err != nil {
		return nil, err
	}

	var list VitalRecordListDto
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("limit", strconv.Itoa(c.historyLimit)).
		SetResult(&list).
		SetError(&APIError{}).
		Get(fmt.Sprintf("/vitalrecords/patient/%d", id))
	if err == nil && isNotFound(resp) {
		return nil, nil
	}
	if err := c.checkResponse(resp, err, "list vital records"); err != nil {
		return nil, err
	}

	var latest *models.VitalReading
	for i := range list.Records {
		r := list.Records[i].toReading()
		if !r.Has(vitalType) {
			continue
		}
		if latest == nil || r.RecordedAt.After(latest.RecordedAt) {
			latest = &r
		}
	}
	return latest, nil
}

// Append 记录体征
func (c *Client) Append(ctx context.Context, reading *models.VitalReading) error {
	id, err := portalID("patient_id", reading.PatientID)
	if err != nil {
		return err
	}

	req := LogVitalRecordRequest{
		PatientID:              id,
		BloodPressureSystolic:  reading.Systolic,
		BloodPressureDiastolic: reading.Diastolic,
		HeartRate:              reading.HeartRate,
		GlucoseLevel:           reading.Glucose,
		Temperature:            reading.Temperature,
	}
	if !reading.RecordedAt.IsZero() {
		at := reading.RecordedAt
		req.DateLogged = &at
	}

	var created VitalRecordDto
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&created).
		SetError(&APIError{}).
		Post("/vitalrecords")
	if err := c.checkResponse(resp, err, "log vital record"); err != nil {
		return err
	}

	reading.ReadingID = strconv.FormatInt(created.RecordID, 10)
	return nil
}
