// Package sensor delivers raw barometric pressure readings from a driver to the
// vario pipeline.
package sensor

import (
	"math"
	"time"
)

// PressureSample is a single raw barometer reading.
type PressureSample struct {
	Value     float64 // hPa
	Timestamp int64   // Monotonic nanoseconds
}

// Valid reports whether the reading can be fed to the altitude model.
func (s PressureSample) Valid() bool {
	return s.Value > 0 && !math.IsNaN(s.Value) && !math.IsInf(s.Value, 0)
}

var epoch = time.Now()

// Monotonic returns nanoseconds elapsed since process start on the monotonic clock.
func Monotonic() int64 {
	return int64(time.Since(epoch))
}

// Accuracy mirrors the accuracy levels reported by barometer drivers.
type Accuracy int

const (
	AccuracyUnreliable Accuracy = iota
	AccuracyLow
	AccuracyMedium
	AccuracyHigh
)

func (a Accuracy) String() string {
	switch a {
	case AccuracyUnreliable:
		return "unreliable"
	case AccuracyLow:
		return "low"
	case AccuracyMedium:
		return "medium"
	case AccuracyHigh:
		return "high"
	default:
		return "unknown"
	}
}
