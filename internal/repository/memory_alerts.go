package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"wisefido-health/internal/models"

	"github.com/google/uuid"
)

// MemoryAlertStore 内存报警存储
// activeByKey 充当 (patient_id, alert_key) WHERE status='Active' 的唯一约束
type MemoryAlertStore struct {
	mu          sync.RWMutex
	alerts      map[string]models.Alert // alertID -> Alert
	activeByKey map[models.AlertKey]string
}

func NewMemoryAlertStore() *MemoryAlertStore {
	return &MemoryAlertStore{
		alerts:      map[string]models.Alert{},
		activeByKey: map[models.AlertKey]string{},
	}
}

var _ AlertStore = (*MemoryAlertStore)(nil)

func (s *MemoryAlertStore) GetActive(_ context.Context, key models.AlertKey) (*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.activeByKey[key]
	if !ok {
		return nil, nil
	}
	a := s.alerts[id]
	return &a, nil
}

func (s *MemoryAlertStore) Create(_ context.Context, alert *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := alert.Key()
	if alert.Status == "" {
		alert.Status = models.AlertStatusActive
	}
	if alert.IsActive() {
		if _, exists := s.activeByKey[key]; exists {
			return models.ErrConflict
		}
	}
	if alert.AlertID == "" {
		alert.AlertID = uuid.NewString()
	}
	s.alerts[alert.AlertID] = *alert
	if alert.IsActive() {
		s.activeByKey[key] = alert.AlertID
	}
	return nil
}

func (s *MemoryAlertStore) Refresh(_ context.Context, alert *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.alerts[alert.AlertID]
	if !ok || !existing.IsActive() {
		return &models.NotFoundError{Resource: "alert", ID: alert.AlertID, AlreadyResolved: ok}
	}
	existing.AlertType = alert.AlertType
	existing.Description = alert.Description
	existing.Severity = alert.Severity
	existing.TriggerValue = alert.TriggerValue
	existing.UpdatedAt = alert.UpdatedAt
	s.alerts[alert.AlertID] = existing
	*alert = existing
	return nil
}

func (s *MemoryAlertStore) Resolve(_ context.Context, alertID, resolvedBy string, resolvedAt time.Time) (*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[alertID]
	if !ok {
		return nil, &models.NotFoundError{Resource: "alert", ID: alertID}
	}
	if !a.IsActive() {
		return nil, &models.NotFoundError{Resource: "alert", ID: alertID, AlreadyResolved: true}
	}
	by := resolvedBy
	at := resolvedAt
	a.Status = models.AlertStatusResolved
	a.ResolvedAt = &at
	a.ResolvedBy = &by
	a.UpdatedAt = resolvedAt
	s.alerts[alertID] = a
	delete(s.activeByKey, a.Key())
	return &a, nil
}

func (s *MemoryAlertStore) Get(_ context.Context, alertID string) (*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.alerts[alertID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *MemoryAlertStore) ListByPatient(_ context.Context, patientID string, status models.AlertStatus) ([]models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Alert
	for _, a := range s.alerts {
		if a.PatientID != patientID {
			continue
		}
		if status != "" && a.Status != status {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
