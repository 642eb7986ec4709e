package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"wisefido-health/internal/models"
)

// ReadingHandler 读数处理函数
type ReadingHandler func(ctx context.Context, reading *models.VitalReading) error

// ReadingPayload 设备/网关上报的读数
// recorded_at 支持 RFC3339 字符串或 unix 秒
type ReadingPayload struct {
	ReadingID   string          `json:"reading_id"`
	PatientID   string          `json:"patient_id"`
	RecordedAt  json.RawMessage `json:"recorded_at"`
	Systolic    *float64        `json:"systolic"`
	Diastolic   *float64        `json:"diastolic"`
	HeartRate   *float64        `json:"heart_rate"`
	Glucose     *float64        `json:"glucose"`
	Temperature *float64        `json:"temperature"`
	Source      string          `json:"source"`
}

// ParseReading 解析读数 JSON；patientID 非空时作为缺省患者ID（如从 MQTT 主题中解析）
func ParseReading(data []byte, patientID string, receivedAt time.Time) (*models.VitalReading, error) {
	var p ReadingPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &models.ValidationError{Field: "payload", Reason: fmt.Sprintf("invalid json: %v", err)}
	}

	recordedAt, err := parseTimestamp(p.RecordedAt, receivedAt)
	if err != nil {
		return nil, err
	}
	if p.PatientID == "" {
		p.PatientID = patientID
	}

	return &models.VitalReading{
		ReadingID:   p.ReadingID,
		PatientID:   p.PatientID,
		RecordedAt:  recordedAt,
		Systolic:    p.Systolic,
		Diastolic:   p.Diastolic,
		HeartRate:   p.HeartRate,
		Glucose:     p.Glucose,
		Temperature: p.Temperature,
		Source:      p.Source,
	}, nil
}

func parseTimestamp(raw json.RawMessage, fallback time.Time) (time.Time, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return fallback, nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		t, err := time.Parse(time.RFC3339, unquoted)
		if err != nil {
			return time.Time{}, &models.ValidationError{Field: "recorded_at", Reason: fmt.Sprintf("invalid timestamp %q", unquoted)}
		}
		return t, nil
	}
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, &models.ValidationError{Field: "recorded_at", Reason: fmt.Sprintf("invalid timestamp %s", s)}
	}
	return time.Unix(sec, 0).UTC(), nil
}

// patientFromTopic 主题最后一段作为患者ID，如 "health/readings/patient-1"
func patientFromTopic(topic string) string {
	if i := strings.LastIndex(topic, "/"); i >= 0 && i < len(topic)-1 {
		return topic[i+1:]
	}
	return ""
}
