package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements 健康监测相关表结构
// alerts 的部分唯一索引保证同一 (patient_id, alert_key) 至多一条 Active 报警
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS vital_readings (
		reading_id  TEXT PRIMARY KEY,
		patient_id  TEXT NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL,
		systolic    DOUBLE PRECISION,
		diastolic   DOUBLE PRECISION,
		heart_rate  DOUBLE PRECISION,
		glucose     DOUBLE PRECISION,
		temperature DOUBLE PRECISION,
		source      TEXT,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_vital_readings_patient_time ON vital_readings (patient_id, recorded_at DESC)`,

	`CREATE TABLE IF NOT EXISTS alert_thresholds (
		threshold_id TEXT PRIMARY KEY,
		patient_id   TEXT NOT NULL,
		vital_type   TEXT NOT NULL,
		min_value    DOUBLE PRECISION,
		max_value    DOUBLE PRECISION,
		set_by       TEXT NOT NULL,
		set_at       TIMESTAMPTZ NOT NULL,
		is_active    BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_alert_thresholds_active ON alert_thresholds (patient_id, vital_type) WHERE is_active`,

	`CREATE TABLE IF NOT EXISTS medications (
		medication_id TEXT PRIMARY KEY,
		patient_id    TEXT NOT NULL,
		name          TEXT NOT NULL,
		dosage        TEXT NOT NULL,
		frequency     TEXT,
		time_of_day   TEXT[] NOT NULL DEFAULT '{}',
		start_date    DATE,
		end_date      DATE,
		instructions  TEXT,
		is_active     BOOLEAN NOT NULL DEFAULT TRUE,
		prescribed_by TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_medications_patient ON medications (patient_id) WHERE is_active`,

	`CREATE TABLE IF NOT EXISTS dose_logs (
		log_id         TEXT PRIMARY KEY,
		medication_id  TEXT NOT NULL REFERENCES medications (medication_id),
		patient_id     TEXT NOT NULL,
		scheduled_time TIMESTAMPTZ NOT NULL,
		taken_time     TIMESTAMPTZ,
		status         TEXT NOT NULL CHECK (status IN ('Pending', 'Taken', 'Missed')),
		UNIQUE (medication_id, scheduled_time)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_dose_logs_patient_time ON dose_logs (patient_id, scheduled_time)`,

	`CREATE TABLE IF NOT EXISTS alerts (
		alert_id      TEXT PRIMARY KEY,
		patient_id    TEXT NOT NULL,
		alert_key     TEXT NOT NULL,
		alert_type    TEXT NOT NULL,
		description   TEXT NOT NULL,
		severity      TEXT NOT NULL CHECK (severity IN ('Low', 'Medium', 'High', 'Critical')),
		status        TEXT NOT NULL CHECK (status IN ('Active', 'Resolved')),
		trigger_value DOUBLE PRECISION,
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL,
		resolved_at   TIMESTAMPTZ,
		resolved_by   TEXT
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_alerts_active_key ON alerts (patient_id, alert_key) WHERE status = 'Active'`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_patient_status ON alerts (patient_id, status)`,
}

// EnsureSchema 创建表结构（幂等）
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
