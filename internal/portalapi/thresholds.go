package portalapi

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"wisefido-health/internal/models"
	"wisefido-health/internal/repository"

	"go.uber.org/zap"
)

// PatientThresholdsDto 门户阈值（每位患者一行，按体征分列）
type PatientThresholdsDto struct {
	PatientID    int64    `json:"patientId"`
	SystolicMin  *float64 `json:"systolicMin,omitempty"`
	SystolicMax  *float64 `json:"systolicMax,omitempty"`
	DiastolicMin *float64 `json:"diastolicMin,omitempty"`
	DiastolicMax *float64 `json:"diastolicMax,omitempty"`
	HeartRateMin *float64 `json:"heartRateMin,omitempty"`
	HeartRateMax *float64 `json:"heartRateMax,omitempty"`
	GlucoseMin   *float64 `json:"glucoseMin,omitempty"`
	GlucoseMax   *float64 `json:"glucoseMax,omitempty"`
	SetBy        int64    `json:"setBy"`
}

// UpdateThresholdsRequest 更新阈值请求
type UpdateThresholdsRequest struct {
	PatientID    int64    `json:"patientId"`
	DoctorID     int64    `json:"doctorId"`
	SystolicMin  *float64 `json:"systolicMin,omitempty"`
	SystolicMax  *float64 `json:"systolicMax,omitempty"`
	DiastolicMin *float64 `json:"diastolicMin,omitempty"`
	DiastolicMax *float64 `json:"diastolicMax,omitempty"`
	HeartRateMin *float64 `json:"heartRateMin,omitempty"`
	HeartRateMax *float64 `json:"heartRateMax,omitempty"`
	GlucoseMin   *float64 `json:"glucoseMin,omitempty"`
	GlucoseMax   *float64 `json:"glucoseMax,omitempty"`
}

var _ repository.ThresholdStore = (*Client)(nil)

// bounds 指定体征的 min/max 字段；门户不保存体温阈值
func (d *PatientThresholdsDto) bounds(vt models.VitalType) (min, max **float64, ok bool) {
	switch vt {
	case models.VitalSystolic:
		return &d.SystolicMin, &d.SystolicMax, true
	case models.VitalDiastolic:
		return &d.DiastolicMin, &d.DiastolicMax, true
	case models.VitalHeartRate:
		return &d.HeartRateMin, &d.HeartRateMax, true
	case models.VitalGlucose:
		return &d.GlucoseMin, &d.GlucoseMax, true
	}
	return nil, nil, false
}

func (c *Client) getThresholds(ctx context.Context, patientID string) (*PatientThresholdsDto, error) {
	id, err := portalID("patient_id", patientID)
	if err != nil {
		return nil, err
	}

	var dto PatientThresholdsDto
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&dto).
		SetError(&APIError{}).
		Get(fmt.Sprintf("/alertthresholds/patient/%d", id))
	if err == nil && isNotFound(resp) {
		return nil, nil
	}
	if err := c.checkResponse(resp, err, "get thresholds"); err != nil {
		return nil, err
	}
	return &dto, nil
}

// GetActive 获取患者某一体征的阈值（未配置返回 nil）
func (c *Client) GetActive(ctx context.Context, patientID string, vitalType models.VitalType) (*models.Threshold, error) {
	dto, err := c.getThresholds(ctx, patientID)
	if err != nil || dto == nil {
		return nil, err
	}
	min, max, ok := dto.bounds(vitalType)
	if !ok || (*min == nil && *max == nil) {
		return nil, nil
	}
	return &models.Threshold{
		PatientID: patientID,
		VitalType: vitalType,
		Min:       *min,
		Max:       *max,
		SetBy:     strconv.FormatInt(dto.SetBy, 10),
		IsActive:  true,
	}, nil
}

// SetActive 更新患者某一体征的阈值（保留其他体征的现有值）
func (c *Client) SetActive(ctx context.Context, threshold *models.Threshold) error {
	patientID, err := portalID("patient_id", threshold.PatientID)
	if err != nil {
		return err
	}
	doctorID, err := portalID("set_by", threshold.SetBy)
	if err != nil {
		return err
	}

	current, err := c.getThresholds(ctx, threshold.PatientID)
	if err != nil {
		return err
	}
	if current == nil {
		current = &PatientThresholdsDto{PatientID: patientID}
	}
	min, max, ok := current.bounds(threshold.VitalType)
	if !ok {
		return &models.ValidationError{Field: "vital_type", Reason: fmt.Sprintf("portal does not store %s thresholds", threshold.VitalType)}
	}
	*min, *max = threshold.Min, threshold.Max

	req := UpdateThresholdsRequest{
		PatientID:    patientID,
		DoctorID:     doctorID,
		SystolicMin:  current.SystolicMin,
		SystolicMax:  current.SystolicMax,
		DiastolicMin: current.DiastolicMin,
		DiastolicMax: current.DiastolicMax,
		HeartRateMin: current.HeartRateMin,
		HeartRateMax: current.HeartRateMax,
		GlucoseMin:   current.GlucoseMin,
		GlucoseMax:   current.GlucoseMax,
	}
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		SetError(&APIError{}).
		Put(fmt.Sprintf("/alertthresholds/patient/%d", patientID))
	if err := c.checkResponse(resp, err, "update thresholds"); err != nil {
		return err
	}

	threshold.IsActive = true
	if threshold.SetAt.IsZero() {
		threshold.SetAt = time.Now()
	}
	c.logger.Info("Portal thresholds updated",
		zap.String("patient_id", threshold.PatientID),
		zap.String("vital_type", string(threshold.VitalType)),
	)
	return nil
}
