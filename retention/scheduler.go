package retention

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler runs the cleaner on the configured cron schedule.
type Scheduler struct {
	cleaner *Cleaner
	cron    *cron.Cron
	log     zerolog.Logger
}

// NewScheduler wires a cron runner around the cleaner. The schedule comes
// from retention.cleanupSchedule (default: daily at 02:00).
func NewScheduler(cleaner *Cleaner, log zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cleaner: cleaner,
		cron:    cron.New(),
		log:     log,
	}

	schedule := cleaner.cfg.Retention.CleanupSchedule
	_, err := s.cron.AddFunc(schedule, s.runOnce)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins the schedule loop in its own goroutine.
func (s *Scheduler) Start() {
	if !s.cleaner.cfg.Retention.Enabled {
		s.log.Info().Msg("log retention disabled, scheduler not started")
		return
	}
	s.log.Info().Str("schedule", s.cleaner.cfg.Retention.CleanupSchedule).
		Msg("starting retention scheduler")
	s.cron.Start()
}

// Stop halts the schedule loop, waiting for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runOnce() {
	report, err := s.cleaner.Run(context.Background(), Options{
		Compress: s.cleaner.cfg.Retention.CompressBeforeDelete,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("scheduled log cleanup failed")
		return
	}
	s.log.Info().Int64("deleted", report.Deleted).
		Time("cutoff", report.Cutoff).
		Msg("scheduled log cleanup finished")
}
