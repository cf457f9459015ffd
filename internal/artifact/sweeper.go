package artifact

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hoteldex/hotel-admin/internal/store"
)

// Sweeper deletes artifacts whose job passed its expires-at and clears
// the job's file bookkeeping. The job record itself stays for audit.
type Sweeper struct {
	artifacts *Store
	jobs      store.JobStore
	schedule  string
	batch     int

	cron    *cron.Cron
	mu      sync.Mutex
	running bool
	log     *slog.Logger

	// onSwept is called with the number of artifacts removed per cycle;
	// the app wires metrics through it.
	onSwept func(int)
}

func NewSweeper(artifacts *Store, jobs store.JobStore, schedule string, onSwept func(int)) *Sweeper {
	return &Sweeper{
		artifacts: artifacts,
		jobs:      jobs,
		schedule:  schedule,
		batch:     500,
		cron:      cron.New(),
		log:       slog.Default().With("component", "artifact.sweeper"),
		onSwept:   onSwept,
	}
}

// Start schedules the periodic sweep. An empty schedule disables it.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.log.Info("sweep schedule not configured, skipping sweeper")
		return nil
	}
	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}
	if _, err := s.cron.AddFunc(s.schedule, func() {
		deleted, err := s.Sweep(ctx, time.Now().UTC())
		if err != nil {
			s.log.Error("scheduled sweep failed", "error", err)
			return
		}
		if deleted > 0 {
			s.log.Info("scheduled sweep completed", "deleted_count", deleted)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.log.Info("artifact sweeper started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Sweep removes every artifact expired as of now. Per-file failures are
// logged and skipped so one bad path cannot wedge the whole sweep.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	jobs, err := s.jobs.ListExpired(ctx, now, s.batch)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, job := range jobs {
		if err := s.artifacts.Remove(job.ID, job.Format); err != nil {
			s.log.Error("failed to remove expired artifact", "job_id", job.ID, "error", err)
			continue
		}
		if err := s.jobs.ClearArtifact(ctx, job.ID); err != nil {
			s.log.Error("failed to clear artifact bookkeeping", "job_id", job.ID, "error", err)
			continue
		}
		deleted++
	}
	if deleted > 0 && s.onSwept != nil {
		s.onSwept(deleted)
	}
	return deleted, nil
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.log.Info("artifact sweeper stopped")
	}
}
