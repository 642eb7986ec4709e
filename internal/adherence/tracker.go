package adherence

import (
	"math"
	"time"

	"wisefido-health/internal/models"
)

// WeeklyWindowLabel 周统计窗口标签
const WeeklyWindowLabel = "This Week"

// Summarize 统计 [windowStart, windowEnd) 内的服药依从性
// 百分比 = round(Taken / (Taken + Missed) × 100)；尚无已完成记录时为 100
// logs 的状态应已应用惰性 Missed（见 schedule.Scheduler.WithEffectiveStatus）
func Summarize(patientID string, logs []models.DoseLog, windowStart, windowEnd time.Time) models.AdherenceSummary {
	summary := models.AdherenceSummary{
		PatientID:   patientID,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
	}
	window := models.TimeWindow{Start: windowStart, End: windowEnd}

	for i := range logs {
		if !window.Contains(logs[i].ScheduledTime) {
			continue
		}
		summary.Total++
		switch logs[i].Status {
		case models.DoseStatusTaken:
			summary.Taken++
		case models.DoseStatusMissed:
			summary.Missed++
		default:
			summary.Pending++
		}
	}

	summary.Completed = summary.Taken + summary.Missed
	summary.Percentage = Percentage(summary.Taken, summary.Completed)
	return summary
}

// Percentage 依从性百分比
func Percentage(taken, completed int) int {
	if completed == 0 {
		return 100
	}
	return int(math.Round(float64(taken) / float64(completed) * 100))
}

// WeeklyWindow 最近 7 天窗口 [now-7d, now]
func WeeklyWindow(now time.Time) (time.Time, time.Time) {
	// 半开区间右端加 1ns 以包含 now
	return now.AddDate(0, 0, -7), now.Add(time.Nanosecond)
}

// Weekly 最近 7 天依从性
func Weekly(patientID string, logs []models.DoseLog, now time.Time) models.AdherenceSummary {
	start, end := WeeklyWindow(now)
	summary := Summarize(patientID, logs, start, end)
	summary.Window = WeeklyWindowLabel
	return summary
}
