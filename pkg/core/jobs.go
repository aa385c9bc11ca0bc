package core

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"variogo/pkg/session"
)

// Job defines a scheduled task.
type Job interface {
	Name() string
	ShouldFire(s *session.Snapshot) bool
	Run(ctx context.Context, s *session.Snapshot)
}

// BaseJob provides atomic running state to prevent re-entry.
type BaseJob struct {
	name    string
	running int32 // 1 if running, 0 otherwise
}

func NewBaseJob(name string) BaseJob {
	return BaseJob{name: name}
}

func (b *BaseJob) Name() string {
	return b.name
}

// TryLock attempts to set running to 1. Returns true if successful.
func (b *BaseJob) TryLock() bool {
	return atomic.CompareAndSwapInt32(&b.running, 0, 1)
}

func (b *BaseJob) Unlock() {
	atomic.StoreInt32(&b.running, 0)
}

// Busy reports whether the job is currently running.
func (b *BaseJob) Busy() bool {
	return atomic.LoadInt32(&b.running) == 1
}

// TimeJob fires when time elapsed exceeds threshold.
type TimeJob struct {
	BaseJob
	lastTime  time.Time
	threshold time.Duration
	action    func(context.Context, session.Snapshot)
	firstRun  bool
}

func NewTimeJob(name string, threshold time.Duration, action func(context.Context, session.Snapshot)) *TimeJob {
	return &TimeJob{
		BaseJob:   NewBaseJob(name),
		threshold: threshold,
		action:    action,
		firstRun:  true,
	}
}

func (j *TimeJob) ShouldFire(s *session.Snapshot) bool {
	if j.Busy() {
		return false
	}

	if j.firstRun {
		return true
	}

	return time.Since(j.lastTime) >= j.threshold
}

func (j *TimeJob) Run(ctx context.Context, s *session.Snapshot) {
	if !j.TryLock() {
		return
	}
	defer j.Unlock()

	j.lastTime = time.Now()
	j.firstRun = false

	j.action(ctx, *s)
}

// NewUptimeJob logs the session running time every interval.
func NewUptimeJob(interval time.Duration) *TimeJob {
	if interval <= 0 {
		interval = time.Minute
	}
	j := NewTimeJob("Uptime", interval, func(ctx context.Context, s session.Snapshot) {
		logUptime(s)
	})
	// The first report comes one interval after start.
	j.firstRun = false
	j.lastTime = time.Now()
	return j
}

func logUptime(s session.Snapshot) {
	slog.Info("Session: Running for: "+session.FormatUptime(s.Uptime),
		"altitude", s.AltitudeText(),
		"max_climb", s.Stats.MaxClimb,
		"max_sink", s.Stats.MaxSink)
}
