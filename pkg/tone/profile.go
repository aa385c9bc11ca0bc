// Package tone maps vertical speed to audio parameters through an
// interpolated breakpoint table with on/off hysteresis.
package tone

import (
	_ "embed"
	"math"
)

// DefaultProfileText is the embedded profile written out when no user profile exists.
//
//go:embed default_profile.txt
var DefaultProfileText string

// Threshold defaults used when a profile omits them.
const (
	DefaultClimbOn  = 0.2
	DefaultClimbOff = 0.15
	DefaultSinkOn   = -3.0
	DefaultSinkOff  = -3.0
)

// matchTolerance is how close (m/s) a speed must be to a breakpoint to use it verbatim.
const matchTolerance = 0.001

// Point is one breakpoint of the profile.
type Point struct {
	VerticalSpeed float64 // m/s
	FrequencyHz   int
	CycleMillis   int
	DutyPercent   int
}

// Params is the resolved tone for a given vertical speed.
type Params struct {
	FrequencyHz float64
	CycleMillis int
	DutyPercent int
}

// Audible reports whether the parameters produce any sound.
func (p Params) Audible() bool {
	return p.FrequencyHz > 0 && !math.IsNaN(p.FrequencyHz) && p.DutyPercent > 0 && p.CycleMillis > 0
}

func (p Point) params() Params {
	return Params{
		FrequencyHz: float64(p.FrequencyHz),
		CycleMillis: p.CycleMillis,
		DutyPercent: p.DutyPercent,
	}
}

// Profile is an ordered breakpoint table plus the hysteresis thresholds.
type Profile struct {
	ClimbOn  float64
	ClimbOff float64
	SinkOn   float64
	SinkOff  float64
	Points   []Point // ascending by VerticalSpeed
}

// SoundParameters resolves the tone for vs. It reports false when the profile
// has no points or vs is NaN.
func (p *Profile) SoundParameters(vs float64) (Params, bool) {
	if p == nil || len(p.Points) == 0 || math.IsNaN(vs) {
		return Params{}, false
	}

	first, last := p.Points[0], p.Points[len(p.Points)-1]
	if vs <= first.VerticalSpeed {
		return first.params(), true
	}
	if vs >= last.VerticalSpeed {
		return last.params(), true
	}

	for _, pt := range p.Points {
		if math.Abs(pt.VerticalSpeed-vs) < matchTolerance {
			return pt.params(), true
		}
	}

	for i := 0; i < len(p.Points)-1; i++ {
		p1, p2 := p.Points[i], p.Points[i+1]
		if vs >= p1.VerticalSpeed && vs < p2.VerticalSpeed {
			return interpolate(vs, p1, p2), true
		}
	}

	// Unreachable for a sorted table.
	return nearest(p.Points, vs).params(), true
}

func interpolate(vs float64, p1, p2 Point) Params {
	if math.Abs(p2.VerticalSpeed-p1.VerticalSpeed) < matchTolerance {
		return p1.params()
	}
	ratio := (vs - p1.VerticalSpeed) / (p2.VerticalSpeed - p1.VerticalSpeed)
	lerp := func(a, b int) int {
		return int(float64(a) + ratio*float64(b-a))
	}
	return Params{
		FrequencyHz: float64(lerp(p1.FrequencyHz, p2.FrequencyHz)),
		CycleMillis: lerp(p1.CycleMillis, p2.CycleMillis),
		DutyPercent: lerp(p1.DutyPercent, p2.DutyPercent),
	}
}

func nearest(points []Point, vs float64) Point {
	best := points[0]
	for _, pt := range points[1:] {
		if math.Abs(pt.VerticalSpeed-vs) < math.Abs(best.VerticalSpeed-vs) {
			best = pt
		}
	}
	return best
}
