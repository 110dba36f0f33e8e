// Package health provides health checking functionality for the ordonnances API.
package health

import (
	"math"
	"net/http"
	"time"

	"github.com/medicalia/ordonnances-api/interfaces"
)

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	ordonnances   interfaces.OrdonnanceStore
	deliveries    interfaces.DeliveryStore
	passports     interfaces.PassportCache
	ocrConfigured bool
	aiConfigured  bool
	startTime     time.Time
}

// NewHealthChecker creates a new health checker with injected dependencies
func NewHealthChecker(ordonnances interfaces.OrdonnanceStore, deliveries interfaces.DeliveryStore,
	passports interfaces.PassportCache, ocrConfigured, aiConfigured bool) interfaces.HealthChecker {
	return &HealthCheckerImpl{
		ordonnances:   ordonnances,
		deliveries:    deliveries,
		passports:     passports,
		ocrConfigured: ocrConfigured,
		aiConfigured:  aiConfigured,
		startTime:     time.Now(),
	}
}

// HealthCheck returns HTTP-specific health data.
// Used by /health HTTP endpoint
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	switch {
	case h.ordonnances == nil || h.deliveries == nil || h.passports == nil:
		// A missing store means the wiring is broken, not a transient issue
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case !h.ocrConfigured:
		// Deterministic routes still work, photo routes will fail
		status = "degraded"
		httpStatus = http.StatusOK

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	uptime := time.Since(h.startTime)

	data = map[string]any{
		"uptime_hours":   math.Round(uptime.Hours()*10) / 10,
		"ocr_configured": h.ocrConfigured,
		"ai_configured":  h.aiConfigured,
	}
	if h.ordonnances != nil {
		data["ordonnances"] = h.ordonnances.Count()
	}
	if h.deliveries != nil {
		data["delivery_orders"] = h.deliveries.Count()
	}
	if h.passports != nil {
		data["passport_summaries"] = h.passports.Count()
	}

	return status, data, httpStatus
}
