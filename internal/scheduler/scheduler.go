// Package scheduler runs the background scan loop. The HTTP scan trigger
// and the loop share the scanner's serialization, so they never overlap.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"

	"github.com/nearboard/nearboard/internal/scan"
	"github.com/nearboard/nearboard/internal/universe"
)

// Scheduler manages the periodic scan and universe refresh jobs.
type Scheduler struct {
	cron         *gocron.Scheduler
	scanner      *scan.Scanner
	universe     *universe.Builder
	scanEvery    time.Duration
	refreshEvery time.Duration
}

// New creates a scheduler running a scan every scanEvery and a forced
// universe rebuild every refreshEvery.
func New(scanner *scan.Scanner, u *universe.Builder, scanEvery, refreshEvery time.Duration) *Scheduler {
	return &Scheduler{
		cron:         gocron.NewScheduler(time.UTC),
		scanner:      scanner,
		universe:     u,
		scanEvery:    scanEvery,
		refreshEvery: refreshEvery,
	}
}

// Start registers the jobs and runs them asynchronously.
func (s *Scheduler) Start() {
	s.cron.Every(s.scanEvery).Do(func() {
		_, err := s.scanner.Run(context.Background(), nil)
		if errors.Is(err, scan.ErrScanInFlight) {
			log.Debug().Msg("scheduled scan skipped, another scan in flight")
			return
		}
		if err != nil {
			log.Error().Err(err).Msg("scheduled scan failed")
		}
	})

	s.cron.Every(s.refreshEvery).Do(func() {
		if _, err := s.universe.Build(context.Background(), true); err != nil {
			log.Error().Err(err).Msg("scheduled universe refresh failed")
		}
	})

	s.cron.StartAsync()
	log.Info().
		Dur("scan_every", s.scanEvery).
		Dur("refresh_every", s.refreshEvery).
		Msg("scheduler started")
}

// Stop halts all jobs.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Info().Msg("scheduler stopped")
}
