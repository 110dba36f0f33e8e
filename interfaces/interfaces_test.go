package interfaces

import (
	"context"
	"testing"

	"github.com/medicalia/ordonnances-api/aiclient"
	"github.com/medicalia/ordonnances-api/ocrclient"
	"github.com/medicalia/ordonnances-api/ordonnance/entities"
	"github.com/medicalia/ordonnances-api/store"
)

// MockScheduler implements Scheduler interface for testing
type MockScheduler struct {
	started bool
	stopped bool
}

func (m *MockScheduler) Start() error {
	if m.started {
		return &mockError{"already started"}
	}
	m.started = true
	return nil
}

func (m *MockScheduler) Stop() {
	m.stopped = true
}

// MockHealthChecker implements HealthChecker interface for testing
type MockHealthChecker struct {
	status     string
	details    map[string]any
	httpStatus int
}

func (m *MockHealthChecker) HealthCheck() (string, map[string]any, int) {
	return m.status, m.details, m.httpStatus
}

// MockOCRProvider implements OCRProvider interface for testing
type MockOCRProvider struct {
	text string
	meta entities.OCRMeta
	err  error
}

func (m *MockOCRProvider) OCRWithFallback(ctx context.Context, base64Image, mimeType string) (string, entities.OCRMeta, error) {
	return m.text, m.meta, m.err
}

// mockError is a simple error type for testing
type mockError struct {
	msg string
}

func (e *mockError) Error() string {
	return e.msg
}

func TestOrdonnanceStoreInterface(t *testing.T) {
	// The concrete store must be usable through the interface
	var s OrdonnanceStore = store.NewOrdonnanceStore()

	created := s.Create(store.NewOrdonnanceInput{RawText: "Doliprane 1000mg"})
	if created.ID == "" {
		t.Error("Create should assign an id")
	}

	if s.Count() != 1 {
		t.Errorf("Expected 1 ordonnance, got %d", s.Count())
	}

	if _, ok := s.Get(created.ID); !ok {
		t.Error("Get should find the created ordonnance")
	}
}

func TestSchedulerInterface(t *testing.T) {
	scheduler := &MockScheduler{}

	err := scheduler.Start()
	if err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	if !scheduler.started {
		t.Error("Scheduler should be started")
	}

	scheduler.Stop()
	if !scheduler.stopped {
		t.Error("Scheduler should be stopped")
	}
}

func TestHealthCheckerInterface(t *testing.T) {
	checker := &MockHealthChecker{
		status: "healthy",
		details: map[string]any{
			"uptime": "1h",
		},
		httpStatus: 200,
	}

	status, details, httpStatus := checker.HealthCheck()
	if status != "healthy" {
		t.Errorf("Expected status 'healthy', got '%s'", status)
	}
	if details["uptime"] != "1h" {
		t.Errorf("Expected uptime '1h', got '%v'", details["uptime"])
	}
	if httpStatus != 200 {
		t.Errorf("Expected http status 200, got %d", httpStatus)
	}
}

// Example of how interfaces enable dependency injection
type Service struct {
	ordonnances OrdonnanceStore
	ocr         OCRProvider
	scheduler   Scheduler
}

func NewService(ordonnances OrdonnanceStore, ocr OCRProvider, scheduler Scheduler) *Service {
	return &Service{
		ordonnances: ordonnances,
		ocr:         ocr,
		scheduler:   scheduler,
	}
}

func (s *Service) OrdonnanceCount() int {
	return s.ordonnances.Count()
}

func TestServiceWithDependencyInjection(t *testing.T) {
	ordonnances := store.NewOrdonnanceStore()
	ordonnances.Create(store.NewOrdonnanceInput{RawText: "a"})
	ordonnances.Create(store.NewOrdonnanceInput{RawText: "b"})

	service := NewService(ordonnances, &MockOCRProvider{}, &MockScheduler{})

	if count := service.OrdonnanceCount(); count != 2 {
		t.Errorf("Expected 2 ordonnances, got %d", count)
	}
}

// Compile-time checks to ensure our implementations implement the interfaces
func TestCompileTimeChecks(t *testing.T) {
	// These will fail to compile if the implementations don't match the interfaces
	var _ OrdonnanceStore = (*store.OrdonnanceStore)(nil)
	var _ DeliveryStore = (*store.DeliveryStore)(nil)
	var _ PassportCache = (*store.PassportCache)(nil)
	var _ OCRProvider = (*ocrclient.Orchestrator)(nil)
	var _ OCRProvider = (*MockOCRProvider)(nil)
	var _ Structurer = (*aiclient.Client)(nil)
	var _ Summarizer = (*aiclient.Client)(nil)
	var _ Scheduler = (*MockScheduler)(nil)
	var _ HealthChecker = (*MockHealthChecker)(nil)
}
