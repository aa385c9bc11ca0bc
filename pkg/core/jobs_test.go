package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"variogo/pkg/session"
	"variogo/pkg/synth"
)

// TestBaseJob_LockUnlock tests the atomic lock behavior.
func TestBaseJob_LockUnlock(t *testing.T) {
	tests := []struct {
		name        string
		prelock     bool
		wantTryLock bool
	}{
		{"Unlocked - TryLock succeeds", false, true},
		{"Prelocked - TryLock fails", true, true}, // First TryLock succeeds, second fails
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBaseJob("test")

			if tt.prelock {
				// First lock should succeed
				if !b.TryLock() {
					t.Fatal("First TryLock should succeed")
				}
				// Second lock should fail
				if b.TryLock() {
					t.Error("Second TryLock should fail when already locked")
				}
				b.Unlock()
				// After unlock, should succeed again
				if !b.TryLock() {
					t.Error("TryLock should succeed after Unlock")
				}
			} else {
				if got := b.TryLock(); got != tt.wantTryLock {
					t.Errorf("TryLock() = %v, want %v", got, tt.wantTryLock)
				}
			}
		})
	}
}

// TestBaseJob_Name tests the Name method.
func TestBaseJob_Name(t *testing.T) {
	tests := []struct {
		name     string
		jobName  string
		wantName string
	}{
		{"Simple name", "TestJob", "TestJob"},
		{"Empty name", "", ""},
		{"Unicode name", "作业", "作业"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBaseJob(tt.jobName)
			if got := b.Name(); got != tt.wantName {
				t.Errorf("Name() = %v, want %v", got, tt.wantName)
			}
		})
	}
}

// TestTimeJob_ShouldFire tests the time-based trigger logic.
func TestTimeJob_ShouldFire(t *testing.T) {
	tests := []struct {
		name      string
		threshold time.Duration
		wait      time.Duration
		wantFire  bool
	}{
		{"First run always fires", 1 * time.Hour, 0, true},
		{"Below threshold - no fire", 100 * time.Millisecond, 0, false}, // After first run
		{"Above threshold - fires", 10 * time.Millisecond, 20 * time.Millisecond, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewTimeJob("test", tt.threshold, func(ctx context.Context, s session.Snapshot) {})
			snap := session.Snapshot{}

			// First run
			if !job.ShouldFire(&snap) {
				t.Fatal("First run should always fire")
			}
			job.Run(context.Background(), &snap)

			// Wait if specified
			if tt.wait > 0 {
				time.Sleep(tt.wait)
			}

			// Check second fire
			got := job.ShouldFire(&snap)
			if tt.name == "First run always fires" {
				// Skip second check for first run test
				return
			}
			if got != tt.wantFire {
				t.Errorf("ShouldFire() = %v, want %v", got, tt.wantFire)
			}
		})
	}
}

// TestTimeJob_Running tests that job doesn't fire while running.
func TestTimeJob_Running(t *testing.T) {
	var wg sync.WaitGroup
	started := make(chan struct{})
	finish := make(chan struct{})

	job := NewTimeJob("test", 0, func(ctx context.Context, s session.Snapshot) {
		close(started)
		<-finish
	})
	snap := session.Snapshot{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		job.Run(context.Background(), &snap)
	}()
	<-started

	if job.ShouldFire(&snap) {
		t.Error("ShouldFire should return false while job is running")
	}

	close(finish)
	wg.Wait()

	if !job.ShouldFire(&snap) {
		t.Error("ShouldFire should return true after job finishes (zero threshold)")
	}
}

func TestUptimeJob(t *testing.T) {
	job := NewUptimeJob(20 * time.Millisecond)
	snap := session.Snapshot{Uptime: 75 * time.Second}

	if job.ShouldFire(&snap) {
		t.Fatal("uptime must not be reported immediately after start")
	}
	time.Sleep(30 * time.Millisecond)
	if !job.ShouldFire(&snap) {
		t.Fatal("uptime should be reported after one interval")
	}
	job.Run(context.Background(), &snap)
	if job.ShouldFire(&snap) {
		t.Error("uptime fired twice within one interval")
	}

	if NewUptimeJob(0).threshold != time.Minute {
		t.Error("expected one-minute default interval")
	}
}

type fakeRestarter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeRestarter) RestartAudio() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func TestAudioWatchdogJob(t *testing.T) {
	tests := []struct {
		name     string
		audio    session.AudioStatus
		wantFire bool
	}{
		{"Idle", session.AudioStatus{}, false},
		{"Playing", session.AudioStatus{Active: true, Running: true}, false},
		{"LoopDied", session.AudioStatus{Active: true, Running: false, Err: synth.ErrWriteTimeout}, true},
		{"StoppedCleanly", session.AudioStatus{Active: false, Running: false}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRestarter{}
			job := NewAudioWatchdogJob(r)
			snap := session.Snapshot{Audio: tt.audio}

			if got := job.ShouldFire(&snap); got != tt.wantFire {
				t.Errorf("ShouldFire() = %v, want %v", got, tt.wantFire)
			}
			if tt.wantFire {
				job.Run(context.Background(), &snap)
				if r.calls != 1 {
					t.Errorf("expected 1 restart, got %d", r.calls)
				}
			}
		})
	}

	// Backoff and hard failures are logged, not propagated.
	for _, err := range []error{synth.ErrBackoff, errors.New("device gone")} {
		r := &fakeRestarter{err: err}
		job := NewAudioWatchdogJob(r)
		job.Run(context.Background(), &session.Snapshot{Audio: session.AudioStatus{Active: true}})
		if r.calls != 1 {
			t.Errorf("expected restart attempt for %v", err)
		}
	}
}
