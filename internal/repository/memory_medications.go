package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"wisefido-health/internal/models"

	"github.com/google/uuid"
)

// MemoryMedicationStore 内存处方与服药记录存储
type MemoryMedicationStore struct {
	mu          sync.RWMutex
	medications map[string]models.Medication      // medicationID -> Medication
	doseLogs    map[models.DoseKey]models.DoseLog // (medicationID, scheduled) -> DoseLog
}

func NewMemoryMedicationStore() *MemoryMedicationStore {
	return &MemoryMedicationStore{
		medications: map[string]models.Medication{},
		doseLogs:    map[models.DoseKey]models.DoseLog{},
	}
}

var _ MedicationStore = (*MemoryMedicationStore)(nil)

// SaveMedication 新增或覆盖处方
func (s *MemoryMedicationStore) SaveMedication(_ context.Context, med *models.Medication) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if med.MedicationID == "" {
		med.MedicationID = uuid.NewString()
	}
	m := *med
	m.TimeOfDay = append([]string(nil), med.TimeOfDay...)
	s.medications[m.MedicationID] = m
	return nil
}

func (s *MemoryMedicationStore) GetActiveMedications(_ context.Context, patientID string) ([]models.Medication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Medication
	for _, m := range s.medications {
		if m.PatientID == patientID && m.IsActive {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryMedicationStore) GetMedication(_ context.Context, medicationID string) (*models.Medication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.medications[medicationID]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *MemoryMedicationStore) GetDoseLogs(_ context.Context, patientID string, window models.TimeWindow) ([]models.DoseLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.DoseLog
	for _, l := range s.doseLogs {
		if l.PatientID == patientID && window.Contains(l.ScheduledTime) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledTime.Equal(out[j].ScheduledTime) {
			return out[i].ScheduledTime.Before(out[j].ScheduledTime)
		}
		return out[i].MedicationID < out[j].MedicationID
	})
	return out, nil
}

func (s *MemoryMedicationStore) GetDoseLog(_ context.Context, medicationID string, scheduledTime time.Time) (*models.DoseLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.doseLogs[models.NewDoseKey(medicationID, scheduledTime)]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (s *MemoryMedicationStore) UpsertDoseLog(_ context.Context, log *models.DoseLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := log.Key()
	existing, ok := s.doseLogs[key]
	if !ok {
		if log.LogID == "" {
			log.LogID = uuid.NewString()
		}
		s.doseLogs[key] = *log
		return nil
	}

	log.LogID = existing.LogID
	if log.Status == models.DoseStatusPending {
		return nil
	}
	if existing.Status.IsTerminal() {
		return &models.ConflictError{Resource: "dose", ID: existing.LogID, Reason: "dose already " + string(existing.Status)}
	}
	existing.Status = log.Status
	existing.TakenTime = log.TakenTime
	s.doseLogs[key] = existing
	return nil
}

func (s *MemoryMedicationStore) ListPatientsWithActiveMedications(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := map[string]bool{}
	var out []string
	for _, m := range s.medications {
		if m.IsActive && !seen[m.PatientID] {
			seen[m.PatientID] = true
			out = append(out, m.PatientID)
		}
	}
	sort.Strings(out)
	return out, nil
}
