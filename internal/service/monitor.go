package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"wisefido-health/internal/adherence"
	"wisefido-health/internal/evaluator"
	"wisefido-health/internal/lifecycle"
	"wisefido-health/internal/models"
	"wisefido-health/internal/publisher"
	"wisefido-health/internal/repository"
	"wisefido-health/internal/rules"
	"wisefido-health/internal/schedule"
	"wisefido-health/internal/telemetry"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// sweepLookback 漏服扫描回看窗口
const sweepLookback = 7 * 24 * time.Hour

// Stores 引擎依赖的外部存储
type Stores struct {
	Readings    repository.ReadingStore
	Thresholds  repository.ThresholdStore
	Medications repository.MedicationStore
	Alerts      repository.AlertStore
}

// RaisedAlert 一次 Raise 的结果
type RaisedAlert struct {
	Alert   *models.Alert
	Outcome lifecycle.Outcome
}

// ReadingResult 读数处理结果
type ReadingResult struct {
	Reading  *models.VitalReading
	Ranges   map[models.VitalType]models.Range
	Statuses map[models.VitalType]evaluator.Status
	Alerts   []RaisedAlert
}

// MonitorService 健康监测引擎门面
// 读数 → 阈值解析 → 评估 → 报警生命周期；服药计划 → 服药记录 → 依从性
type MonitorService struct {
	stores    Stores
	rules     *rules.Rules
	resolver  *evaluator.Resolver
	evaluator *evaluator.Evaluator
	scheduler *schedule.Scheduler
	lifecycle *lifecycle.Manager
	publisher publisher.Publisher
	metrics   *telemetry.Metrics
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

// NewMonitorService 创建健康监测服务
// pub 和 metrics 可为 nil
func NewMonitorService(stores Stores, r *rules.Rules, pub publisher.Publisher, metrics *telemetry.Metrics, logger *zap.Logger) *MonitorService {
	if pub == nil {
		pub = publisher.NoopPublisher{}
	}
	return &MonitorService{
		stores:    stores,
		rules:     r,
		resolver:  evaluator.NewResolver(stores.Thresholds, r, logger),
		evaluator: evaluator.NewEvaluator(r),
		scheduler: schedule.NewScheduler(r.DoseGracePeriod),
		lifecycle: lifecycle.NewManager(stores.Alerts, logger),
		publisher: pub,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// WithClock 替换时钟（同时作用于报警生命周期）
func (s *MonitorService) WithClock(now func() time.Time) *MonitorService {
	s.now = now
	s.lifecycle.WithClock(now)
	return s
}

// WithIDGenerator 替换ID生成器（报警、服药记录、阈值）
func (s *MonitorService) WithIDGenerator(gen func() string) *MonitorService {
	s.newID = gen
	s.lifecycle.WithIDGenerator(gen)
	s.scheduler.WithIDGenerator(gen)
	return s
}

// ProcessReading 处理一条体征读数
// 校验失败时不写入任何存储；读数写入后逐个处理越界候选，单个候选失败不影响其他候选
func (s *MonitorService) ProcessReading(ctx context.Context, reading *models.VitalReading) (*ReadingResult, error) {
	if err := evaluator.ValidateReading(reading, s.rules); err != nil {
		s.metrics.RecordReading(ctx, telemetry.ReadingRejected)
		return nil, err
	}

	if err := s.stores.Readings.Append(ctx, reading); err != nil {
		s.metrics.RecordReading(ctx, telemetry.ReadingFailed)
		return nil, fmt.Errorf("failed to append reading: %w", err)
	}

	ranges := s.resolver.ResolveReading(ctx, reading)
	result := &ReadingResult{
		Reading:  reading,
		Ranges:   ranges,
		Statuses: s.evaluator.ClassifyReading(reading, ranges),
	}

	var firstErr error
	for _, c := range s.evaluator.Evaluate(reading, ranges) {
		alert, outcome, err := s.raise(ctx, c)
		if err != nil {
			s.logger.Error("Failed to raise alert",
				zap.String("patient_id", reading.PatientID),
				zap.String("vital_type", string(c.VitalType)),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		result.Alerts = append(result.Alerts, RaisedAlert{Alert: alert, Outcome: outcome})
	}

	if firstErr != nil {
		s.metrics.RecordReading(ctx, telemetry.ReadingFailed)
		return result, firstErr
	}
	s.metrics.RecordReading(ctx, telemetry.ReadingAccepted)
	return result, nil
}

// raise 交给生命周期管理并发布事件
func (s *MonitorService) raise(ctx context.Context, c models.AlertCandidate) (*models.Alert, lifecycle.Outcome, error) {
	alert, outcome, err := s.lifecycle.Raise(ctx, c)
	if err != nil {
		return nil, "", err
	}
	s.metrics.RecordAlertRaised(ctx, c.Severity, string(outcome))

	switch outcome {
	case lifecycle.OutcomeCreated:
		s.publish(ctx, publisher.EventAlertRaised, publisher.NewAlertEvent(alert))
	case lifecycle.OutcomeRefreshed:
		s.publish(ctx, publisher.EventAlertRefreshed, publisher.NewAlertEvent(alert))
	}
	return alert, outcome, nil
}

// publish 发布失败只记录日志
func (s *MonitorService) publish(ctx context.Context, eventType string, payload interface{}) {
	if err := s.publisher.Publish(ctx, eventType, payload); err != nil {
		s.logger.Warn("Failed to publish event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}

// ResolveAlert 医生 resolve 报警
// patientID 非空时校验报警归属，不属于该患者按不存在处理
func (s *MonitorService) ResolveAlert(ctx context.Context, alertID, resolvedBy, patientID string) (*models.Alert, error) {
	if patientID != "" && alertID != "" {
		existing, err := s.stores.Alerts.Get(ctx, alertID)
		if err != nil {
			return nil, fmt.Errorf("failed to get alert: %w", err)
		}
		if existing == nil || existing.PatientID != patientID {
			return nil, &models.NotFoundError{Resource: "alert", ID: alertID}
		}
	}

	alert, err := s.lifecycle.Resolve(ctx, alertID, resolvedBy)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordAlertResolved(ctx)
	s.publish(ctx, publisher.EventAlertResolved, publisher.NewAlertEvent(alert))
	return alert, nil
}

// SetThreshold 设置患者阈值（旧阈值由存储停用）
func (s *MonitorService) SetThreshold(ctx context.Context, t *models.Threshold) error {
	if t == nil {
		return &models.ValidationError{Field: "threshold", Reason: "is required"}
	}
	if t.ThresholdID == "" {
		t.ThresholdID = s.newID()
	}
	if t.SetAt.IsZero() {
		t.SetAt = s.now()
	}
	t.IsActive = true
	if err := evaluator.ValidateThreshold(t); err != nil {
		return err
	}
	if err := s.stores.Thresholds.SetActive(ctx, t); err != nil {
		return fmt.Errorf("failed to set threshold: %w", err)
	}
	return nil
}

// ResolveThreshold 患者某体征当前生效的范围
func (s *MonitorService) ResolveThreshold(ctx context.Context, patientID string, vt models.VitalType) models.Range {
	return s.resolver.Resolve(ctx, patientID, vt)
}

// dayWindow [from 当日 0 点, to 次日 0 点)
func dayWindow(from, to time.Time) models.TimeWindow {
	loc := from.Location()
	to = to.In(loc)
	return models.TimeWindow{
		Start: time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc),
		End:   time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1),
	}
}

// MaterializeDoses 为患者所有有效处方生成 [from, to] 日历日内缺少的服药记录，返回新建数量
func (s *MonitorService) MaterializeDoses(ctx context.Context, patientID string, from, to time.Time) (int, error) {
	if patientID == "" {
		return 0, &models.ValidationError{Field: "patient_id", Reason: "is required"}
	}
	if to.Before(from) {
		return 0, &models.ValidationError{Field: "window", Reason: "end is before start"}
	}

	meds, err := s.stores.Medications.GetActiveMedications(ctx, patientID)
	if err != nil {
		return 0, fmt.Errorf("failed to get medications: %w", err)
	}
	if len(meds) == 0 {
		return 0, nil
	}

	existing, err := s.stores.Medications.GetDoseLogs(ctx, patientID, dayWindow(from, to))
	if err != nil {
		return 0, fmt.Errorf("failed to get dose logs: %w", err)
	}

	created := 0
	for i := range meds {
		logs, err := s.scheduler.Materialize(&meds[i], from, to, existing)
		if err != nil {
			s.logger.Warn("Skip medication with invalid schedule",
				zap.String("patient_id", patientID),
				zap.String("medication_id", meds[i].MedicationID),
				zap.Error(err),
			)
			continue
		}
		for j := range logs {
			if err := s.stores.Medications.UpsertDoseLog(ctx, &logs[j]); err != nil {
				return created, fmt.Errorf("failed to upsert dose log: %w", err)
			}
			created++
		}
	}

	if created > 0 {
		s.logger.Debug("Doses materialized",
			zap.String("patient_id", patientID),
			zap.Int("created", created),
		)
	}
	return created, nil
}

// loadDose 读取服药记录；尚未生成时按处方校验该时间点并返回 Pending 记录
func (s *MonitorService) loadDose(ctx context.Context, medicationID string, scheduled time.Time) (*models.DoseLog, *models.Medication, error) {
	med, err := s.stores.Medications.GetMedication(ctx, medicationID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get medication: %w", err)
	}
	if med == nil {
		return nil, nil, &models.NotFoundError{Resource: "medication", ID: medicationID}
	}

	log, err := s.stores.Medications.GetDoseLog(ctx, medicationID, scheduled)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get dose log: %w", err)
	}
	if log != nil {
		if log.Status == models.DoseStatusPending && !schedule.Scheduled(med, log.ScheduledTime) {
			return nil, nil, &models.NotFoundError{Resource: "dose", ID: fmt.Sprintf("%s@%s", medicationID, scheduled.Format(time.RFC3339))}
		}
		return log, med, nil
	}

	times, err := schedule.Expand(med, scheduled, scheduled)
	if err != nil {
		return nil, nil, err
	}
	for _, ts := range times {
		if ts.Equal(scheduled) {
			return &models.DoseLog{
				LogID:         s.newID(),
				MedicationID:  medicationID,
				PatientID:     med.PatientID,
				ScheduledTime: scheduled,
				Status:        models.DoseStatusPending,
			}, med, nil
		}
	}
	return nil, nil, &models.NotFoundError{Resource: "dose", ID: fmt.Sprintf("%s@%s", medicationID, scheduled.Format(time.RFC3339))}
}

// MarkDoseTaken 记录已服药（宽限期结束前）
func (s *MonitorService) MarkDoseTaken(ctx context.Context, medicationID string, scheduled time.Time) (*models.DoseLog, error) {
	log, _, err := s.loadDose(ctx, medicationID, scheduled)
	if err != nil {
		return nil, err
	}
	taken, err := s.scheduler.MarkTaken(*log, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.stores.Medications.UpsertDoseLog(ctx, &taken); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to upsert dose log: %w", err)
	}
	s.metrics.RecordDose(ctx, models.DoseStatusTaken)
	s.logger.Info("Dose taken",
		zap.String("patient_id", taken.PatientID),
		zap.String("medication_id", medicationID),
		zap.Time("scheduled_time", scheduled),
	)
	return &taken, nil
}

// MarkDoseMissed 显式记录漏服，并触发漏服报警
func (s *MonitorService) MarkDoseMissed(ctx context.Context, medicationID string, scheduled time.Time) (*models.DoseLog, error) {
	log, med, err := s.loadDose(ctx, medicationID, scheduled)
	if err != nil {
		return nil, err
	}
	missed, err := s.scheduler.MarkMissed(*log)
	if err != nil {
		return nil, err
	}
	if err := s.recordMissed(ctx, med, &missed); err != nil {
		return nil, err
	}
	return &missed, nil
}

// recordMissed 持久化漏服记录、发布事件、触发漏服报警
func (s *MonitorService) recordMissed(ctx context.Context, med *models.Medication, missed *models.DoseLog) error {
	if err := s.stores.Medications.UpsertDoseLog(ctx, missed); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return err
		}
		return fmt.Errorf("failed to upsert dose log: %w", err)
	}
	s.metrics.RecordDose(ctx, models.DoseStatusMissed)
	s.publish(ctx, publisher.EventDoseMissed, publisher.NewDoseEvent(missed))

	if _, _, err := s.raise(ctx, s.evaluator.MissedDoseCandidate(med, missed)); err != nil {
		return fmt.Errorf("failed to raise missed medication alert: %w", err)
	}
	return nil
}

// SweepMissedDoses 将超过宽限期仍为 Pending 的记录持久化为 Missed 并触发漏服报警，返回处理数量
func (s *MonitorService) SweepMissedDoses(ctx context.Context, patientID string) (int, error) {
	now := s.now()
	logs, err := s.stores.Medications.GetDoseLogs(ctx, patientID, models.TimeWindow{Start: now.Add(-sweepLookback), End: now})
	if err != nil {
		return 0, fmt.Errorf("failed to get dose logs: %w", err)
	}

	logs, meds, err := s.scheduledLogs(ctx, logs)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, dose := range s.scheduler.Overdue(logs, now) {
		med := meds[dose.MedicationID]
		if med == nil {
			continue
		}

		dose := dose
		if err := s.recordMissed(ctx, med, &dose); err != nil {
			if errors.Is(err, models.ErrConflict) {
				// 扫描期间已被记录为终态
				continue
			}
			return swept, err
		}
		swept++
	}

	if swept > 0 {
		s.logger.Info("Missed doses swept",
			zap.String("patient_id", patientID),
			zap.Int("count", swept),
		)
	}
	return swept, nil
}

// scheduledLogs 去掉已停用处方遗留的 Pending 记录，同时返回涉及的处方
func (s *MonitorService) scheduledLogs(ctx context.Context, logs []models.DoseLog) ([]models.DoseLog, map[string]*models.Medication, error) {
	meds := make(map[string]*models.Medication)
	for i := range logs {
		id := logs[i].MedicationID
		if _, ok := meds[id]; ok {
			continue
		}
		med, err := s.stores.Medications.GetMedication(ctx, id)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get medication: %w", err)
		}
		meds[id] = med
	}
	return schedule.DropDiscontinued(logs, meds), meds, nil
}

// RunScheduleTick 对所有有有效处方的患者生成 [今天, 今天+lookaheadDays] 的服药记录并扫描漏服
// 单个患者失败只记录日志
func (s *MonitorService) RunScheduleTick(ctx context.Context, lookaheadDays int) error {
	patients, err := s.stores.Medications.ListPatientsWithActiveMedications(ctx)
	if err != nil {
		return fmt.Errorf("failed to list patients: %w", err)
	}

	now := s.now()
	for _, patientID := range patients {
		if _, err := s.MaterializeDoses(ctx, patientID, now, now.AddDate(0, 0, lookaheadDays)); err != nil {
			s.logger.Error("Failed to materialize doses", zap.String("patient_id", patientID), zap.Error(err))
		}
		if _, err := s.SweepMissedDoses(ctx, patientID); err != nil {
			s.logger.Error("Failed to sweep missed doses", zap.String("patient_id", patientID), zap.Error(err))
		}
	}
	return nil
}

// DueDoses 患者当日服药列表（含有效状态与是否到期）
func (s *MonitorService) DueDoses(ctx context.Context, patientID string) ([]models.TodayDose, error) {
	now := s.now()
	meds, err := s.stores.Medications.GetActiveMedications(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get medications: %w", err)
	}
	logs, err := s.stores.Medications.GetDoseLogs(ctx, patientID, dayWindow(now, now))
	if err != nil {
		return nil, fmt.Errorf("failed to get dose logs: %w", err)
	}
	return s.scheduler.Today(meds, logs, now)
}

// Adherence 患者在 [start, end) 内的服药依从性
func (s *MonitorService) Adherence(ctx context.Context, patientID string, start, end time.Time, label string) (models.AdherenceSummary, error) {
	logs, err := s.stores.Medications.GetDoseLogs(ctx, patientID, models.TimeWindow{Start: start, End: end})
	if err != nil {
		return models.AdherenceSummary{}, fmt.Errorf("failed to get dose logs: %w", err)
	}
	logs, _, err = s.scheduledLogs(ctx, logs)
	if err != nil {
		return models.AdherenceSummary{}, err
	}
	summary := adherence.Summarize(patientID, s.scheduler.WithEffectiveStatus(logs, s.now()), start, end)
	summary.Window = label
	return summary, nil
}

// WeeklyAdherence 最近 7 天依从性
func (s *MonitorService) WeeklyAdherence(ctx context.Context, patientID string) (models.AdherenceSummary, error) {
	now := s.now()
	start, end := adherence.WeeklyWindow(now)
	return s.Adherence(ctx, patientID, start, end, adherence.WeeklyWindowLabel)
}

// AlertCounts 多个患者的报警统计
func (s *MonitorService) AlertCounts(ctx context.Context, patientIDs []string) (models.AlertCounts, error) {
	if counter, ok := s.stores.Alerts.(repository.AlertCounter); ok {
		counts, err := counter.CountByPatients(ctx, patientIDs)
		if err != nil {
			return models.AlertCounts{}, fmt.Errorf("failed to count alerts: %w", err)
		}
		return counts, nil
	}

	var counts models.AlertCounts
	for _, patientID := range patientIDs {
		alerts, err := s.stores.Alerts.ListByPatient(ctx, patientID, "")
		if err != nil {
			return models.AlertCounts{}, fmt.Errorf("failed to list alerts: %w", err)
		}
		for i := range alerts {
			counts.Add(&alerts[i])
		}
	}
	return counts, nil
}

// ListAlerts 患者报警列表：按级别降序，同级按创建时间倒序
func (s *MonitorService) ListAlerts(ctx context.Context, patientID string, status models.AlertStatus) ([]models.Alert, error) {
	alerts, err := s.stores.Alerts.ListByPatient(ctx, patientID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	sort.SliceStable(alerts, func(i, j int) bool {
		if ri, rj := alerts[i].Severity.Rank(), alerts[j].Severity.Rank(); ri != rj {
			return ri > rj
		}
		return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
	})
	return alerts, nil
}
