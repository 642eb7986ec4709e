package models

import (
	"time"
)

// AdherenceSummary 服药依从性统计
// Completed = Taken + Missed；Pending 不计入分母
type AdherenceSummary struct {
	PatientID   string    `json:"patient_id"`
	Window      string    `json:"window"` // 如 "This Week"
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	Total       int       `json:"total"`
	Taken       int       `json:"taken"`
	Missed      int       `json:"missed"`
	Pending     int       `json:"pending"`
	Completed   int       `json:"completed"`
	Percentage  int       `json:"percentage"`
}
