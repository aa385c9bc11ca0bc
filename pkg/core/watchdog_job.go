package core

import (
	"context"
	"errors"
	"log/slog"

	"variogo/pkg/session"
	"variogo/pkg/synth"
)

// AudioWatchdogJob restarts the synthesis loop after it terminated while the
// tone was requested. Restart attempts are gated by the player's backoff.
type AudioWatchdogJob struct {
	BaseJob
	audio AudioRestarter
}

func NewAudioWatchdogJob(a AudioRestarter) *AudioWatchdogJob {
	return &AudioWatchdogJob{
		BaseJob: NewBaseJob("AudioWatchdog"),
		audio:   a,
	}
}

func (j *AudioWatchdogJob) ShouldFire(s *session.Snapshot) bool {
	if j.Busy() {
		return false
	}
	return s.Audio.Active && !s.Audio.Running
}

func (j *AudioWatchdogJob) Run(ctx context.Context, s *session.Snapshot) {
	if !j.TryLock() {
		return
	}
	defer j.Unlock()

	err := j.audio.RestartAudio()
	switch {
	case err == nil:
		slog.Info("AudioWatchdog: synthesis restarted", "previous_error", s.Audio.Err)
	case errors.Is(err, synth.ErrBackoff):
		slog.Debug("AudioWatchdog: restart backing off")
	default:
		slog.Warn("AudioWatchdog: restart failed", "error", err)
	}
}
