package repository

import (
	"context"
	"sync"

	"wisefido-health/internal/models"

	"github.com/google/uuid"
)

type thresholdKey struct {
	patientID string
	vitalType models.VitalType
}

// MemoryThresholdStore 内存阈值存储
type MemoryThresholdStore struct {
	mu     sync.RWMutex
	active map[thresholdKey]models.Threshold
	// 已停用的历史阈值
	history []models.Threshold
}

func NewMemoryThresholdStore() *MemoryThresholdStore {
	return &MemoryThresholdStore{
		active: map[thresholdKey]models.Threshold{},
	}
}

var _ ThresholdStore = (*MemoryThresholdStore)(nil)

func (s *MemoryThresholdStore) GetActive(_ context.Context, patientID string, vitalType models.VitalType) (*models.Threshold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.active[thresholdKey{patientID, vitalType}]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *MemoryThresholdStore) SetActive(_ context.Context, threshold *models.Threshold) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := thresholdKey{threshold.PatientID, threshold.VitalType}
	if prev, ok := s.active[key]; ok {
		prev.IsActive = false
		s.history = append(s.history, prev)
	}
	if threshold.ThresholdID == "" {
		threshold.ThresholdID = uuid.NewString()
	}
	threshold.IsActive = true
	s.active[key] = *threshold
	return nil
}

// History 已停用的阈值
func (s *MemoryThresholdStore) History() []models.Threshold {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Threshold(nil), s.history...)
}
