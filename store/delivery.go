package store

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Delivery order statuses, in lifecycle order.
const (
	DeliveryStatusPending  = "PENDING"
	DeliveryStatusAccepted = "ACCEPTED"
	DeliveryStatusPickedUp = "PICKED_UP"
)

// ValidDeliveryStatuses lists every status the PATCH endpoint accepts.
var ValidDeliveryStatuses = []string{
	DeliveryStatusPending, DeliveryStatusAccepted, DeliveryStatusPickedUp,
}

func IsValidDeliveryStatus(status string) bool {
	for _, s := range ValidDeliveryStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// DeliveryOrder routes one ordonnance to a pharmacy. It carries no medical
// data and no QR token, only routing information.
type DeliveryOrder struct {
	ID              string  `json:"id"`
	OrdonnanceID    string  `json:"ordonnanceId"`
	PharmacyID      string  `json:"pharmacyId"`
	Status          string  `json:"status"`
	DeliveryAddress string  `json:"deliveryAddress"`
	DeliveryNote    *string `json:"deliveryNote"`
	PatientPhone    *string `json:"patientPhone"`
	TimeWindow      *string `json:"timeWindow"`
	CreatedAt       string  `json:"createdAt"`
	UpdatedAt       string  `json:"updatedAt"`
	ExpiresAt       string  `json:"expiresAt"`
}

// NewDeliveryOrderInput is the validated create request.
type NewDeliveryOrderInput struct {
	OrdonnanceID    string
	PharmacyID      string
	DeliveryAddress string
	DeliveryNote    *string
	PatientPhone    *string
	TimeWindow      *string
}

// DeliveryStore keeps orders in memory, keyed by id. Orders expire 24 hours
// after creation and are swept by a background job.
type DeliveryStore struct {
	mu     sync.RWMutex
	orders map[string]DeliveryOrder
	now    func() time.Time
}

func NewDeliveryStore() *DeliveryStore {
	return &DeliveryStore{orders: map[string]DeliveryOrder{}, now: time.Now}
}

func (s *DeliveryStore) Create(in NewDeliveryOrderInput) DeliveryOrder {
	now := s.now()
	order := DeliveryOrder{
		ID:              uuid.NewString(),
		OrdonnanceID:    in.OrdonnanceID,
		PharmacyID:      in.PharmacyID,
		Status:          DeliveryStatusPending,
		DeliveryAddress: in.DeliveryAddress,
		DeliveryNote:    in.DeliveryNote,
		PatientPhone:    in.PatientPhone,
		TimeWindow:      in.TimeWindow,
		CreatedAt:       now.Format(time.RFC3339),
		UpdatedAt:       now.Format(time.RFC3339),
		ExpiresAt:       now.Add(24 * time.Hour).Format(time.RFC3339),
	}

	s.mu.Lock()
	s.orders[order.ID] = order
	s.mu.Unlock()
	return order
}

func (s *DeliveryStore) Get(id string) (DeliveryOrder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[id]
	return order, ok
}

// ListByOrdonnance returns every order attached to an ordonnance.
func (s *DeliveryStore) ListByOrdonnance(ordonnanceID string) []DeliveryOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []DeliveryOrder{}
	for _, order := range s.orders {
		if order.OrdonnanceID == ordonnanceID {
			out = append(out, order)
		}
	}
	return out
}

func (s *DeliveryStore) UpdateStatus(id, status string) (DeliveryOrder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return DeliveryOrder{}, false
	}
	order.Status = status
	order.UpdatedAt = s.now().Format(time.RFC3339)
	s.orders[id] = order
	return order, true
}

func (s *DeliveryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

// ExpireStale removes every order past its expiresAt and reports how many
// were dropped.
func (s *DeliveryStore) ExpireStale() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, order := range s.orders {
		expiresAt, err := time.Parse(time.RFC3339, order.ExpiresAt)
		if err != nil {
			continue
		}
		if now.After(expiresAt) {
			delete(s.orders, id)
			removed++
		}
	}
	return removed
}
