// Package interfaces defines core abstractions for the ordonnances API
// to improve testability, maintainability, and separation of concerns.
package interfaces

import (
	"context"
	"time"

	"github.com/medicalia/ordonnances-api/ordonnance/entities"
	"github.com/medicalia/ordonnances-api/store"
)

// OrdonnanceStore defines the contract for prescription storage.
// Implementations must be safe for concurrent use by HTTP handlers.
type OrdonnanceStore interface {
	Create(in store.NewOrdonnanceInput) entities.Stored
	List() []entities.Stored
	Get(id string) (entities.Stored, bool)
	Update(id string, patch store.OrdonnancePatch) (entities.Stored, bool)
	Count() int
}

// DeliveryStore defines the contract for pharmacy delivery order storage.
type DeliveryStore interface {
	Create(in store.NewDeliveryOrderInput) store.DeliveryOrder
	Get(id string) (store.DeliveryOrder, bool)
	ListByOrdonnance(ordonnanceID string) []store.DeliveryOrder
	UpdateStatus(id, status string) (store.DeliveryOrder, bool)
	Count() int
	ExpireStale() int
}

// PassportCache defines the contract for the health passport summary cache.
type PassportCache interface {
	Put(hash string, summary store.PassportSummary)
	Get(hash string) (store.PassportSummary, bool)
	Count() int
	TrimOlderThan(maxAge time.Duration) int
}

// OCRProvider defines the contract for reading text out of a prescription
// photo, including the second attempt on the untouched image.
type OCRProvider interface {
	OCRWithFallback(ctx context.Context, base64Image, mimeType string) (string, entities.OCRMeta, error)
}

// Structurer defines the contract for AI structuring of raw OCR text.
// A failed call means the deterministic analyzer takes over.
type Structurer interface {
	Structure(ctx context.Context, text string) (map[string]any, error)
	Configured() bool
}

// Summarizer defines the contract for medical summary generation.
type Summarizer interface {
	Summarize(ctx context.Context, factsText string) (string, error)
	Configured() bool
}

// Scheduler defines the contract for background job scheduling.
// It manages store expiry sweeps.
type Scheduler interface {
	// Lifecycle management
	Start() error
	Stop()
}

// HealthChecker defines the contract for health check functionality.
// It provides system health monitoring and reporting.
type HealthChecker interface {
	// HealthCheck returns current system health status
	HealthCheck() (status string, details map[string]any, httpStatus int)
}
