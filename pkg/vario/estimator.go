// Package vario derives vertical speed from consecutive altitude estimates.
package vario

import (
	"math"
	"sync"
	"time"
)

// DefaultMinDt is the shortest interval used for a derivative.
const DefaultMinDt = 20 * time.Millisecond

// State is the estimator memory. The zero value has no prior pair.
type State struct {
	HasPrior      bool
	LastAltitude  float64
	LastTimestamp int64 // ns
	LastSpeed     float64
}

// NewState returns a state with no prior pair and no speed.
func NewState() State {
	return State{LastSpeed: math.NaN()}
}

// Estimate computes the vertical speed in m/s for a new (altitude, timestamp)
// pair. It is NaN until two usable pairs have been seen. Intervals shorter than
// minDt, including negative ones, carry the previous speed forward.
// The returned state always holds the new pair.
func Estimate(st State, altitudeM float64, tsNanos int64, minDt time.Duration) (float64, State) {
	next := State{
		HasPrior:      true,
		LastAltitude:  altitudeM,
		LastTimestamp: tsNanos,
	}

	if !st.HasPrior || math.IsNaN(altitudeM) || math.IsNaN(st.LastAltitude) {
		next.LastSpeed = math.NaN()
		return next.LastSpeed, next
	}

	dt := float64(tsNanos-st.LastTimestamp) / 1e9
	if dt < minDt.Seconds() {
		next.LastSpeed = st.LastSpeed
		return next.LastSpeed, next
	}

	next.LastSpeed = (altitudeM - st.LastAltitude) / dt
	return next.LastSpeed, next
}

// Estimator owns a State for the pressure-processing path.
type Estimator struct {
	mu    sync.Mutex
	state State
	minDt time.Duration
}

// NewEstimator creates an estimator. A non-positive minDt selects DefaultMinDt.
func NewEstimator(minDt time.Duration) *Estimator {
	if minDt <= 0 {
		minDt = DefaultMinDt
	}
	return &Estimator{state: NewState(), minDt: minDt}
}

// Update feeds a new altitude and returns the vertical speed (m/s, NaN if unavailable).
func (e *Estimator) Update(altitudeM float64, tsNanos int64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	var vs float64
	vs, e.state = Estimate(e.state, altitudeM, tsNanos, e.minDt)
	return vs
}

// Reset forgets the prior pair.
func (e *Estimator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = NewState()
}

// Last returns the most recent vertical speed.
func (e *Estimator) Last() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.LastSpeed
}
