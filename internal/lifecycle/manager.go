package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wisefido-health/internal/models"
	"wisefido-health/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Outcome Raise 的结果
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeRefreshed Outcome = "refreshed"
	OutcomeSkipped   Outcome = "skipped" // 并发创建冲突，已有 Active 报警
)

// Manager 报警生命周期管理
// 每个 AlertKey：无报警 → Active → Resolved（终态，之后的越界创建新报警）
type Manager struct {
	store  repository.AlertStore
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

// NewManager 创建报警生命周期管理器
func NewManager(store repository.AlertStore, logger *zap.Logger) *Manager {
	return &Manager{
		store:  store,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// WithClock 替换时钟
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// WithIDGenerator 替换报警ID生成器
func (m *Manager) WithIDGenerator(gen func() string) *Manager {
	m.newID = gen
	return m
}

// Raise 处理一个报警候选
// 该键已有 Active 报警时刷新其描述与级别（保留 ID 与创建时间），否则创建新报警
// 存储唯一约束冲突视为已有 Active 报警，记录日志后跳过
func (m *Manager) Raise(ctx context.Context, c models.AlertCandidate) (*models.Alert, Outcome, error) {
	existing, err := m.store.GetActive(ctx, c.Key)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get active alert: %w", err)
	}

	now := m.now()
	if existing != nil {
		existing.AlertType = c.AlertType
		existing.Description = c.Description
		existing.Severity = c.Severity
		existing.TriggerValue = c.Value
		existing.UpdatedAt = now
		err := m.store.Refresh(ctx, existing)
		if err == nil {
			return existing, OutcomeRefreshed, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return nil, "", fmt.Errorf("failed to refresh alert: %w", err)
		}
		// 报警在读取后被 resolve，按新报警创建
	}

	alert := &models.Alert{
		AlertID:      m.newID(),
		PatientID:    c.Key.PatientID,
		AlertKey:     c.Key.Subject,
		AlertType:    c.AlertType,
		Description:  c.Description,
		Severity:     c.Severity,
		Status:       models.AlertStatusActive,
		TriggerValue: c.Value,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := m.store.Create(ctx, alert); err != nil {
		if errors.Is(err, models.ErrConflict) {
			m.logger.Info("alert already active, skip create",
				zap.String("patient_id", c.Key.PatientID),
				zap.String("alert_key", c.Key.Subject),
				zap.String("severity", string(c.Severity)),
			)
			return nil, OutcomeSkipped, nil
		}
		return nil, "", fmt.Errorf("failed to create alert: %w", err)
	}

	m.logger.Info("Alert raised",
		zap.String("alert_id", alert.AlertID),
		zap.String("patient_id", alert.PatientID),
		zap.String("alert_key", alert.AlertKey),
		zap.String("severity", string(alert.Severity)),
	)
	return alert, OutcomeCreated, nil
}

// Resolve 医生显式 resolve 报警
// 不存在或已 resolve 时返回 *models.NotFoundError
func (m *Manager) Resolve(ctx context.Context, alertID, resolvedBy string) (*models.Alert, error) {
	if alertID == "" {
		return nil, &models.ValidationError{Field: "alert_id", Reason: "is required"}
	}
	if resolvedBy == "" {
		return nil, &models.ValidationError{Field: "resolved_by", Reason: "is required"}
	}

	alert, err := m.store.Resolve(ctx, alertID, resolvedBy, m.now())
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to resolve alert: %w", err)
	}

	m.logger.Info("Alert resolved",
		zap.String("alert_id", alert.AlertID),
		zap.String("patient_id", alert.PatientID),
		zap.String("resolved_by", resolvedBy),
	)
	return alert, nil
}
