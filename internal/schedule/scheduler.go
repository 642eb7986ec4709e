package schedule

import (
	"sort"
	"time"

	"wisefido-health/internal/models"

	"github.com/google/uuid"
)

// Scheduler 服药计划展开器
// 无后台定时器：Pending → Missed 由调用方传入的当前时间在读取时惰性计算
type Scheduler struct {
	grace time.Duration
	newID func() string
}

// NewScheduler 创建服药计划展开器
func NewScheduler(grace time.Duration) *Scheduler {
	return &Scheduler{
		grace: grace,
		newID: uuid.NewString,
	}
}

// WithIDGenerator 替换记录ID生成器
func (s *Scheduler) WithIDGenerator(gen func() string) *Scheduler {
	s.newID = gen
	return s
}

type civilDate struct {
	year  int
	month time.Month
	day   int
}

func dateOf(t time.Time) civilDate {
	y, m, d := t.Date()
	return civilDate{y, m, d}
}

func (c civilDate) before(o civilDate) bool {
	if c.year != o.year {
		return c.year < o.year
	}
	if c.month != o.month {
		return c.month < o.month
	}
	return c.day < o.day
}

// activeOn 药品在该日历日是否有效（StartDate ≤ day ≤ EndDate，EndDate 为空表示长期）
func activeOn(med *models.Medication, day civilDate) bool {
	if !med.IsActive {
		return false
	}
	if med.StartDate != nil && day.before(dateOf(*med.StartDate)) {
		return false
	}
	if med.EndDate != nil && dateOf(*med.EndDate).before(day) {
		return false
	}
	return true
}

// Scheduled 该时间点所在日期处方是否有效；处方停用或超出起止日期后为 false
func Scheduled(med *models.Medication, ts time.Time) bool {
	return med != nil && activeOn(med, dateOf(ts))
}

// DropDiscontinued 去掉处方已停用、已删除或不在有效期内的 Pending 记录
// Taken/Missed 是已发生的事实，原样保留
func DropDiscontinued(logs []models.DoseLog, meds map[string]*models.Medication) []models.DoseLog {
	out := make([]models.DoseLog, 0, len(logs))
	for i := range logs {
		if logs[i].Status == models.DoseStatusPending && !Scheduled(meds[logs[i].MedicationID], logs[i].ScheduledTime) {
			continue
		}
		out = append(out, logs[i])
	}
	return out
}

// Expand 将药品的每日服药时间展开为 [from, to] 日历日内的具体时间点（包含两端日期）
// 日历日按 from 的时区计算，结果升序
func Expand(med *models.Medication, from, to time.Time) ([]time.Time, error) {
	times, err := ParseTimeOfDayList(med.TimeOfDay)
	if err != nil {
		return nil, err
	}
	loc := from.Location()
	to = to.In(loc)

	var out []time.Time
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	last := dateOf(to)
	for day := start; !last.before(dateOf(day)); day = day.AddDate(0, 0, 1) {
		if !activeOn(med, dateOf(day)) {
			continue
		}
		for _, tod := range times {
			out = append(out, time.Date(day.Year(), day.Month(), day.Day(), tod.Hour, tod.Minute, 0, 0, loc))
		}
	}
	return out, nil
}

// Materialize 生成窗口内尚不存在的服药记录（按 medication_id + scheduled_time 去重）
// 对同一窗口重复调用只会返回空列表
func (s *Scheduler) Materialize(med *models.Medication, from, to time.Time, existing []models.DoseLog) ([]models.DoseLog, error) {
	times, err := Expand(med, from, to)
	if err != nil {
		return nil, err
	}

	seen := make(map[models.DoseKey]bool, len(existing))
	for i := range existing {
		seen[existing[i].Key()] = true
	}

	var logs []models.DoseLog
	for _, ts := range times {
		key := models.NewDoseKey(med.MedicationID, ts)
		if seen[key] {
			continue
		}
		seen[key] = true
		logs = append(logs, models.DoseLog{
			LogID:         s.newID(),
			MedicationID:  med.MedicationID,
			PatientID:     med.PatientID,
			ScheduledTime: ts,
			Status:        models.DoseStatusPending,
		})
	}
	return logs, nil
}

// EffectiveStatus 读取时的有效状态：Pending 超过宽限期视为 Missed
func (s *Scheduler) EffectiveStatus(log *models.DoseLog, now time.Time) models.DoseStatus {
	if log.Status == models.DoseStatusPending && !now.Before(log.ScheduledTime.Add(s.grace)) {
		return models.DoseStatusMissed
	}
	return log.Status
}

// IsDue 已到计划时间、仍在宽限期内且未记录终态
func (s *Scheduler) IsDue(log *models.DoseLog, now time.Time) bool {
	return log.Status == models.DoseStatusPending &&
		!now.Before(log.ScheduledTime) &&
		now.Before(log.ScheduledTime.Add(s.grace))
}

// Due 过滤出当前到期的服药记录
func (s *Scheduler) Due(logs []models.DoseLog, now time.Time) []models.DoseLog {
	var out []models.DoseLog
	for i := range logs {
		if s.IsDue(&logs[i], now) {
			out = append(out, logs[i])
		}
	}
	return out
}

// Overdue 存储状态仍为 Pending 但已超过宽限期的记录（返回已置为 Missed 的副本，供持久化）
func (s *Scheduler) Overdue(logs []models.DoseLog, now time.Time) []models.DoseLog {
	var out []models.DoseLog
	for i := range logs {
		if logs[i].Status == models.DoseStatusPending && s.EffectiveStatus(&logs[i], now) == models.DoseStatusMissed {
			missed := logs[i]
			missed.Status = models.DoseStatusMissed
			out = append(out, missed)
		}
	}
	return out
}

// WithEffectiveStatus 返回应用惰性状态后的副本
func (s *Scheduler) WithEffectiveStatus(logs []models.DoseLog, now time.Time) []models.DoseLog {
	out := make([]models.DoseLog, len(logs))
	for i := range logs {
		out[i] = logs[i]
		out[i].Status = s.EffectiveStatus(&logs[i], now)
	}
	return out
}

// MarkTaken Pending → Taken（宽限期结束前）
func (s *Scheduler) MarkTaken(log models.DoseLog, now time.Time) (models.DoseLog, error) {
	if log.Status.IsTerminal() {
		return log, &models.ConflictError{Resource: "dose", ID: log.LogID, Reason: "dose already " + string(log.Status)}
	}
	if s.EffectiveStatus(&log, now) == models.DoseStatusMissed {
		return log, &models.ConflictError{Resource: "dose", ID: log.LogID, Reason: "grace period elapsed, dose is missed"}
	}
	taken := now
	log.Status = models.DoseStatusTaken
	log.TakenTime = &taken
	return log, nil
}

// MarkMissed Pending → Missed
func (s *Scheduler) MarkMissed(log models.DoseLog) (models.DoseLog, error) {
	if log.Status.IsTerminal() {
		return log, &models.ConflictError{Resource: "dose", ID: log.LogID, Reason: "dose already " + string(log.Status)}
	}
	log.Status = models.DoseStatusMissed
	return log, nil
}

// Today 当日服药列表：展开所有有效药品的当日时间点并合并已有记录的状态
func (s *Scheduler) Today(meds []models.Medication, logs []models.DoseLog, now time.Time) ([]models.TodayDose, error) {
	byKey := make(map[models.DoseKey]*models.DoseLog, len(logs))
	for i := range logs {
		byKey[logs[i].Key()] = &logs[i]
	}

	var out []models.TodayDose
	for i := range meds {
		med := &meds[i]
		times, err := Expand(med, now, now)
		if err != nil {
			return nil, err
		}
		for _, ts := range times {
			log, ok := byKey[models.NewDoseKey(med.MedicationID, ts)]
			if !ok {
				log = &models.DoseLog{MedicationID: med.MedicationID, PatientID: med.PatientID, ScheduledTime: ts, Status: models.DoseStatusPending}
			}
			out = append(out, models.TodayDose{
				MedicationID:  med.MedicationID,
				Name:          med.Name,
				Dosage:        med.Dosage,
				ScheduledTime: ts,
				TakenTime:     log.TakenTime,
				Status:        s.EffectiveStatus(log, now),
				Due:           s.IsDue(log, now),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ScheduledTime.Equal(out[j].ScheduledTime) {
			return out[i].ScheduledTime.Before(out[j].ScheduledTime)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}
