// Package store holds the process-lifetime state: the ordonnance list, the
// delivery-order map and the passport summary cache. Nothing here is
// durable, a restart empties every store.
package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medicalia/ordonnances-api/ordonnance/entities"
)

// NewOrdonnanceInput carries the optional fields of a new stored record;
// the factory applies the defaults.
type NewOrdonnanceInput struct {
	Source       string
	RawText      string
	DoctorName   *string
	PatientName  *string
	Medications  []entities.Medication
	Appointments []entities.RDV
	Rdv          *entities.RDV
	Status       string
	CreatedAt    string
	Type         *string
	IsRdv        bool
}

// OrdonnanceStore is an append-only in-memory list. Records are never
// removed; only Status and IsRdv may change after creation.
type OrdonnanceStore struct {
	mu      sync.RWMutex
	records []entities.Stored
}

func NewOrdonnanceStore() *OrdonnanceStore {
	return &OrdonnanceStore{records: []entities.Stored{}}
}

// Create builds a record from the input, fills the defaults and appends it.
func (s *OrdonnanceStore) Create(in NewOrdonnanceInput) entities.Stored {
	record := entities.Stored{
		ID:           uuid.NewString(),
		Source:       in.Source,
		RawText:      in.RawText,
		DoctorName:   in.DoctorName,
		PatientName:  in.PatientName,
		Medications:  in.Medications,
		Appointments: in.Appointments,
		Rdv:          in.Rdv,
		Status:       in.Status,
		CreatedAt:    in.CreatedAt,
		Type:         in.Type,
		IsRdv:        in.IsRdv,
	}
	if record.Source == "" {
		record.Source = entities.SourcePDF
	}
	if record.Status == "" {
		record.Status = entities.StatusARecuperer
	}
	if record.CreatedAt == "" {
		record.CreatedAt = time.Now().Format(time.RFC3339)
	}
	if record.Medications == nil {
		record.Medications = []entities.Medication{}
	}
	if record.Appointments == nil {
		record.Appointments = []entities.RDV{}
	}

	s.mu.Lock()
	s.records = append(s.records, record)
	s.mu.Unlock()
	return record
}

// List returns a copy of every record in insertion order.
func (s *OrdonnanceStore) List() []entities.Stored {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entities.Stored, len(s.records))
	copy(out, s.records)
	return out
}

func (s *OrdonnanceStore) Get(id string) (entities.Stored, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.ID == id {
			return r, true
		}
	}
	return entities.Stored{}, false
}

func (s *OrdonnanceStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// OrdonnancePatch updates the only mutable fields of a stored record.
type OrdonnancePatch struct {
	Status *string
	IsRdv  *bool
}

func (s *OrdonnanceStore) Update(id string, patch OrdonnancePatch) (entities.Stored, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID != id {
			continue
		}
		if patch.Status != nil {
			s.records[i].Status = *patch.Status
		}
		if patch.IsRdv != nil {
			s.records[i].IsRdv = *patch.IsRdv
		}
		return s.records[i], true
	}
	return entities.Stored{}, false
}
