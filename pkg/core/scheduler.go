package core

import (
	"context"
	"log/slog"
	"time"
)

// DefaultInterval is the heartbeat used when none is configured.
const DefaultInterval = time.Second

// Scheduler manages the central heartbeat and scheduled jobs.
type Scheduler struct {
	interval time.Duration
	source   SnapshotSource
	sink     TelemetrySink
	jobs     []Job
}

// NewScheduler creates a new Scheduler. A nil sink disables broadcasting.
func NewScheduler(interval time.Duration, source SnapshotSource, sink TelemetrySink) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		interval: interval,
		source:   source,
		sink:     sink,
		jobs:     []Job{},
	}
}

// AddJob registers a job.
func (s *Scheduler) AddJob(j Job) {
	s.jobs = append(s.jobs, j)
}

// Interval returns the heartbeat interval.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// Start runs the main loop. It blocks until context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("Scheduler started", "interval", s.interval, "jobs", len(s.jobs))

	for {
		select {
		case <-ctx.Done():
			slog.Info("Scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	snap := s.source.Snapshot()

	if s.sink != nil {
		s.sink.Update(&snap)
	}

	for _, job := range s.jobs {
		if job.ShouldFire(&snap) {
			// Fire and forget
			go job.Run(ctx, &snap)
		}
	}
}
