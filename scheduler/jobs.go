// Package scheduler re-enqueues stock refreshes on a timer while the US
// market is trading.
package scheduler

import (
	"context"
	"time"
	_ "time/tzdata"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"
)

// Enqueuer schedules a refresh of every stored stock
type Enqueuer interface {
	EnqueueAll(ctx context.Context) (int, error)
}

var newYork = loadMarketLocation()

func loadMarketLocation() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.FixedZone("EST", -5*60*60)
	}
	return loc
}

// Scheduler manages scheduled jobs
type Scheduler struct {
	cron     *gocron.Scheduler
	enqueuer Enqueuer
	interval int
	now      func() time.Time
}

// NewScheduler creates a new scheduler instance. intervalMinutes <= 0
// disables the periodic refresh.
func NewScheduler(enqueuer Enqueuer, intervalMinutes int) *Scheduler {
	cron := gocron.NewScheduler(newYork)
	cron.SingletonModeAll()

	return &Scheduler{
		cron:     cron,
		enqueuer: enqueuer,
		interval: intervalMinutes,
		now:      time.Now,
	}
}

// Start starts all scheduled jobs
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		log.Info().Msg("Periodic refresh disabled")
		return nil
	}

	// Refresh every stock on the interval during trading hours
	if _, err := s.cron.Every(s.interval).Minutes().Do(s.refreshDuringSession, ctx); err != nil {
		return err
	}

	// Capture closing prices once the session ends
	if _, err := s.cron.Every(1).Day().At("16:05").Do(s.refreshAfterClose, ctx); err != nil {
		return err
	}

	s.cron.StartAsync()
	log.Info().Int("interval_minutes", s.interval).Msg("Scheduler started successfully")
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Info().Msg("Scheduler stopped")
}

func (s *Scheduler) refreshDuringSession(ctx context.Context) {
	if !IsMarketOpen(s.now()) {
		return
	}
	s.enqueueAll(ctx)
}

func (s *Scheduler) refreshAfterClose(ctx context.Context) {
	if isWeekend(s.now().In(newYork)) {
		return
	}
	s.enqueueAll(ctx)
}

func (s *Scheduler) enqueueAll(ctx context.Context) {
	n, err := s.enqueuer.EnqueueAll(ctx)
	if err != nil {
		log.Error().Err(err).Int("queued", n).Msg("Scheduled refresh failed")
		return
	}
	log.Info().Int("queued", n).Msg("Scheduled refresh enqueued")
}

// IsMarketOpen checks if the NYSE regular session is open at t
// (Mon-Fri 09:30-16:00 New York time). Exchange holidays are not considered.
func IsMarketOpen(t time.Time) bool {
	local := t.In(newYork)
	if isWeekend(local) {
		return false
	}

	minutes := local.Hour()*60 + local.Minute()
	return minutes >= 9*60+30 && minutes < 16*60
}

func isWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}
