// Package synth renders the vario tone as 16-bit mono PCM and drives the
// audio output device.
package synth

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"variogo/pkg/logging"
	"variogo/pkg/tone"
)

const (
	DefaultSampleRate = 44100
	DefaultBufferSize = 2048

	twoPi = 2 * math.Pi
)

// Synthesizer is a phase-accumulated sine gated by a duty-cycle envelope.
// Parameters and volume may be changed from any goroutine; Fill and Run must
// be called from a single goroutine.
type Synthesizer struct {
	sampleRate int
	bufferSize int
	params     atomic.Pointer[tone.Params]
	volume     *VolumeCell

	phase    float64
	cyclePos int
	rendered atomic.Uint64
}

// New creates a synthesizer. Non-positive sizes select the defaults; a nil
// volume cell means full volume.
func New(sampleRate, bufferSize int, volume *VolumeCell) *Synthesizer {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if volume == nil {
		volume = NewVolumeCell(1)
	}
	s := &Synthesizer{
		sampleRate: sampleRate,
		bufferSize: bufferSize,
		volume:     volume,
	}
	s.params.Store(&tone.Params{})
	return s
}

func (s *Synthesizer) SampleRate() int { return s.sampleRate }

func (s *Synthesizer) BufferSize() int { return s.bufferSize }

// Volume returns the cell read by the loop.
func (s *Synthesizer) Volume() *VolumeCell { return s.volume }

// SetParams publishes a new tone snapshot for the next buffer.
func (s *Synthesizer) SetParams(p tone.Params) {
	s.params.Store(&p)
}

// Params returns the current snapshot.
func (s *Synthesizer) Params() tone.Params {
	return *s.params.Load()
}

// Rendered returns the number of samples produced so far.
func (s *Synthesizer) Rendered() uint64 {
	return s.rendered.Load()
}

// Reset rewinds the oscillator and the duty-cycle counter.
func (s *Synthesizer) Reset() {
	s.phase = 0
	s.cyclePos = 0
}

// Fill renders one buffer from the latest snapshot.
func (s *Synthesizer) Fill(buf []int16) {
	p := *s.params.Load()
	vol := s.volume.Get()
	s.rendered.Add(uint64(len(buf)))

	if !(p.FrequencyHz > 0) || p.DutyPercent <= 0 || p.CycleMillis <= 0 {
		clear(buf)
		return
	}

	total := max(1, int(math.Round(float64(p.CycleMillis)*float64(s.sampleRate)/1000)))
	on := int(math.Round(float64(total) * float64(p.DutyPercent) / 100))
	if s.cyclePos >= total {
		s.cyclePos = 0
	}
	step := twoPi * p.FrequencyHz / float64(s.sampleRate)
	amplitude := math.Round(math.MaxInt16 * vol)

	for i := range buf {
		if s.cyclePos < on {
			buf[i] = int16(math.Round(math.Sin(s.phase) * amplitude))
		} else {
			buf[i] = 0
		}
		s.phase += step
		if s.phase >= twoPi {
			s.phase = math.Mod(s.phase, twoPi)
		}
		s.cyclePos = (s.cyclePos + 1) % total
	}
}

// Run renders buffers into out until ctx is cancelled or a write fails.
// Cancellation is checked before every buffer and yields a nil error.
func (s *Synthesizer) Run(ctx context.Context, out Output) error {
	buf := make([]int16, s.bufferSize)
	for {
		if ctx.Err() != nil {
			return nil
		}
		s.Fill(buf)
		logging.TraceDefault("Synth: buffer", "hz", s.Params().FrequencyHz, "volume", s.volume.Get())
		if err := out.Write(buf); err != nil {
			if ctx.Err() != nil && errors.Is(err, ErrOutputStopped) {
				return nil
			}
			return fmt.Errorf("audio write: %w", err)
		}
	}
}
