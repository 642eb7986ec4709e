package schedule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"wisefido-health/internal/models"
)

// TimeOfDay 每日服药时间
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) minutes() int {
	return t.Hour*60 + t.Minute
}

// ParseTimeOfDay 解析 "HH:MM"（也接受 "8:00"）
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 || parts[0] == "" || len(parts[1]) != 2 {
		return TimeOfDay{}, &models.ValidationError{Field: "time_of_day", Reason: fmt.Sprintf("invalid time %q, want HH:MM", s)}
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return TimeOfDay{}, &models.ValidationError{Field: "time_of_day", Reason: fmt.Sprintf("invalid hour in %q", s)}
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return TimeOfDay{}, &models.ValidationError{Field: "time_of_day", Reason: fmt.Sprintf("invalid minute in %q", s)}
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

// ParseTimeOfDayList 解析服药时间列表
// 每项可以是逗号分隔的多个时间（"08:00, 20:00"），结果去重并按时间排序
func ParseTimeOfDayList(entries []string) ([]TimeOfDay, error) {
	seen := make(map[int]bool)
	var out []TimeOfDay
	for _, entry := range entries {
		for _, part := range strings.Split(entry, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			tod, err := ParseTimeOfDay(part)
			if err != nil {
				return nil, err
			}
			if seen[tod.minutes()] {
				continue
			}
			seen[tod.minutes()] = true
			out = append(out, tod)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].minutes() < out[j].minutes() })
	return out, nil
}

// FormatTimeOfDayList 规范化为 "HH:MM" 列表
func FormatTimeOfDayList(times []TimeOfDay) []string {
	out := make([]string, 0, len(times))
	for _, t := range times {
		out = append(out, t.String())
	}
	return out
}
