package scheduler

import (
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"

	"github.com/i474232898/field-conditions/internal/conditions"
	"github.com/i474232898/field-conditions/internal/metrics"
)

const defaultInterval = time.Minute

// Scheduler periodically samples provider health into a status store.
type Scheduler struct {
	scheduler *gocron.Scheduler
	store     conditions.StatusStore
	reporters []conditions.HealthReporter
	interval  time.Duration

	// last state seen per provider, touched only by the job goroutine
	last map[string]string
}

// New creates a new Scheduler.
func New(reporters []conditions.HealthReporter, interval time.Duration, store conditions.StatusStore) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		store:     store,
		reporters: reporters,
		interval:  interval,
		last:      make(map[string]string),
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.reporters) == 0 {
		log.Info().Msg("scheduler: no providers to monitor; nothing to schedule")
		return nil
	}

	interval := s.interval
	if interval <= 0 {
		interval = defaultInterval
	}

	if _, err := s.scheduler.Every(interval).Do(s.sample); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// sample records one health reading per provider.
func (s *Scheduler) sample() {
	for _, r := range s.reporters {
		status := r.Health()
		s.store.SaveStatus(status)
		metrics.BreakerState.WithLabelValues(status.Provider).Set(stateValue(status.State))

		if prev, ok := s.last[status.Provider]; ok && prev != status.State {
			log.Warn().Str("provider", status.Provider).Str("from", prev).Str("to", status.State).
				Msg("scheduler: provider breaker state changed")
		}
		s.last[status.Provider] = status.State
	}
}

func stateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}
