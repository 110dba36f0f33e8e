// Package scheduler runs the periodic maintenance jobs of the ordonnances
// API: expiring stale delivery orders and trimming old passport summaries
// out of the cache.
package scheduler

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/medicalia/ordonnances-api/interfaces"
	"github.com/medicalia/ordonnances-api/logging"
)

// PassportSummaryMaxAge is how long a cached passport summary stays
// resolvable, matching the passport token lifetime.
const PassportSummaryMaxAge = 30 * 24 * time.Hour

// Compile-time check to ensure Scheduler implements the Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// Scheduler sweeps the in-memory stores on a fixed interval.
type Scheduler struct {
	deliveries interfaces.DeliveryStore
	passports  interfaces.PassportCache
	scheduler  *gocron.Scheduler
}

// NewScheduler creates a new scheduler instance with injected stores
func NewScheduler(deliveries interfaces.DeliveryStore, passports interfaces.PassportCache) *Scheduler {
	return &Scheduler{
		deliveries: deliveries,
		passports:  passports,
		scheduler:  gocron.NewScheduler(time.Local),
	}
}

// Start runs one immediate sweep and schedules the hourly ones.
func (s *Scheduler) Start() error {
	s.sweep()

	_, err := s.scheduler.Every(1).Hour().Do(s.sweep)
	if err != nil {
		logging.Error("Failed to schedule store sweeps", "error", err)
		return fmt.Errorf("failed to schedule store sweeps: %w", err)
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) sweep() {
	expired := s.deliveries.ExpireStale()
	trimmed := s.passports.TrimOlderThan(PassportSummaryMaxAge)

	if expired > 0 || trimmed > 0 {
		logging.Info("Store sweep complete",
			"expired_delivery_orders", expired,
			"trimmed_passport_summaries", trimmed)
	}
}
