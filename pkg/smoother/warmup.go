package smoother

import (
	"time"

	"variogo/pkg/sensor"
)

// DefaultWarmup is the sensor settling time after a (re)start.
const DefaultWarmup = 500 * time.Millisecond

// Warmup discards samples taken within the settling window after a restart.
// The window is anchored on the first sample seen after Reset.
type Warmup struct {
	window  time.Duration
	start   int64
	started bool
}

// NewWarmup creates a gate. A non-positive window disables it.
func NewWarmup(window time.Duration) *Warmup {
	return &Warmup{window: window}
}

// Accept reports whether the sample is past the warm-up window.
func (w *Warmup) Accept(s sensor.PressureSample) bool {
	if w.window <= 0 {
		return true
	}
	if !w.started {
		w.start = s.Timestamp
		w.started = true
	}
	return s.Timestamp-w.start >= int64(w.window)
}

// Reset re-arms the gate from the next sample.
func (w *Warmup) Reset() {
	w.started = false
	w.start = 0
}

// ResetAt re-arms the gate with an explicit start time, e.g. the registration time.
func (w *Warmup) ResetAt(ts int64) {
	w.start = ts
	w.started = true
}
