package session

import (
	"math"
	"time"

	"variogo/pkg/altitude"
	"variogo/pkg/sensor"
	"variogo/pkg/tone"
)

// Reading is the output of one pipeline step. Values are NaN until known.
type Reading struct {
	Pressure      float64 // smoothed, hPa
	Altitude      float64 // m
	VerticalSpeed float64 // m/s
	Timestamp     int64   // ns, of the smoothed sample
	Playing       bool
	Tone          tone.Params
	Err           error
}

func emptyReading() Reading {
	return Reading{
		Pressure:      math.NaN(),
		Altitude:      math.NaN(),
		VerticalSpeed: math.NaN(),
	}
}

// Stats tracks session extremes. Values are NaN until the first estimate.
type Stats struct {
	MaxAltitude float64
	MinAltitude float64
	MaxClimb    float64
	MaxSink     float64
	Samples     uint64 // smoothed samples processed
	Faults      uint64 // invalid samples and sensor errors
}

func newStats() Stats {
	nan := math.NaN()
	return Stats{MaxAltitude: nan, MinAltitude: nan, MaxClimb: nan, MaxSink: nan}
}

func (s *Stats) observe(alt, vs float64) {
	s.Samples++
	if !math.IsNaN(alt) {
		if math.IsNaN(s.MaxAltitude) || alt > s.MaxAltitude {
			s.MaxAltitude = alt
		}
		if math.IsNaN(s.MinAltitude) || alt < s.MinAltitude {
			s.MinAltitude = alt
		}
	}
	if !math.IsNaN(vs) {
		if math.IsNaN(s.MaxClimb) || vs > s.MaxClimb {
			s.MaxClimb = vs
		}
		if math.IsNaN(s.MaxSink) || vs < s.MaxSink {
			s.MaxSink = vs
		}
	}
}

// AudioStatus describes the playback side.
type AudioStatus struct {
	Active  bool
	Running bool
	Volume  float64
	Err     error
}

// Snapshot is a point-in-time view of the session for display and the API.
type Snapshot struct {
	ID          string
	StartedAt   time.Time
	Uptime      time.Duration
	Reading     Reading
	QNH         float64
	UseMetric   bool
	VolumeLevel int
	Sensor      sensor.Status
	Audio       AudioStatus
	Stats       Stats
	// Err is the pipeline error, falling back to the sensor manager error.
	Err error
}

// AltitudeText renders the altitude in the configured units.
func (s Snapshot) AltitudeText() string {
	return altitude.FormatAltitude(s.Reading.Altitude, s.UseMetric)
}

// VerticalSpeedText renders the vertical speed in the configured units.
func (s Snapshot) VerticalSpeedText() string {
	return altitude.FormatVerticalSpeed(s.Reading.VerticalSpeed, s.UseMetric)
}
