package repository

import (
	"context"
	"sync"

	"wisefido-health/internal/models"

	"github.com/google/uuid"
)

// MemoryReadingStore 内存体征记录存储（未配置数据库时使用）
type MemoryReadingStore struct {
	mu       sync.RWMutex
	readings map[string][]models.VitalReading // patientID -> readings（按追加顺序）
}

func NewMemoryReadingStore() *MemoryReadingStore {
	return &MemoryReadingStore{
		readings: map[string][]models.VitalReading{},
	}
}

var _ ReadingStore = (*MemoryReadingStore)(nil)

func (s *MemoryReadingStore) GetLatest(_ context.Context, patientID string, vitalType models.VitalType) (*models.VitalReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.VitalReading
	for i := range s.readings[patientID] {
		r := &s.readings[patientID][i]
		if !r.Has(vitalType) {
			continue
		}
		if latest == nil || !r.RecordedAt.Before(latest.RecordedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, nil
	}
	out := *latest
	return &out, nil
}

func (s *MemoryReadingStore) Append(_ context.Context, reading *models.VitalReading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if reading.ReadingID == "" {
		reading.ReadingID = uuid.NewString()
	}
	for i := range s.readings[reading.PatientID] {
		if s.readings[reading.PatientID][i].ReadingID == reading.ReadingID {
			return nil
		}
	}
	s.readings[reading.PatientID] = append(s.readings[reading.PatientID], *reading)
	return nil
}
