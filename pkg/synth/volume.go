package synth

import (
	"math"
	"sync/atomic"
)

// Volume levels exposed to users.
const (
	VolumeOff = iota
	VolumeLow
	VolumeMedium
	VolumeHigh
)

// VolumeForLevel maps a quantized level to an amplitude multiplier.
// Unknown levels are silent.
func VolumeForLevel(level int) float64 {
	switch level {
	case VolumeLow:
		return 0.33
	case VolumeMedium:
		return 0.66
	case VolumeHigh:
		return 1.0
	default:
		return 0
	}
}

// VolumeCell is a lock-free float64 read once per buffer by the synthesis loop.
type VolumeCell struct {
	bits atomic.Uint64
}

// NewVolumeCell creates a cell holding v.
func NewVolumeCell(v float64) *VolumeCell {
	c := &VolumeCell{}
	c.Set(v)
	return c
}

// Set stores v clamped to [0, 1]. NaN is stored as 0.
func (c *VolumeCell) Set(v float64) {
	switch {
	case math.IsNaN(v) || v < 0:
		v = 0
	case v > 1:
		v = 1
	}
	c.bits.Store(math.Float64bits(v))
}

// SetLevel stores the multiplier for a quantized level.
func (c *VolumeCell) SetLevel(level int) {
	c.Set(VolumeForLevel(level))
}

// Get returns the current multiplier.
func (c *VolumeCell) Get() float64 {
	return math.Float64frombits(c.bits.Load())
}
