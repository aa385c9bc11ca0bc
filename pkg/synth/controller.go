package synth

import (
	"errors"
	"log/slog"
	"math"

	"variogo/pkg/tone"
)

// Transport is the playback side driven by gate edges.
type Transport interface {
	Start() error
	Stop() error
}

// Controller turns vertical speed into tone parameters and playback edges.
// It is owned by the pressure-processing goroutine.
type Controller struct {
	profile   *tone.Profile
	gate      *tone.Gate
	synth     *Synthesizer
	transport Transport
}

// NewController wires a profile to a synthesizer and its transport.
func NewController(p *tone.Profile, s *Synthesizer, t Transport) *Controller {
	return &Controller{
		profile:   p,
		gate:      tone.NewGate(p),
		synth:     s,
		transport: t,
	}
}

// Update applies a new vertical speed sample and returns whether the tone is playing.
// NaN leaves the state unchanged.
func (c *Controller) Update(vs float64) bool {
	if math.IsNaN(vs) {
		return c.gate.Playing()
	}

	params, ok := c.profile.SoundParameters(vs)
	if !ok {
		params = tone.Params{}
	}

	was := c.gate.Playing()
	now := c.gate.Next(vs, params)

	switch {
	case now:
		c.synth.SetParams(params)
		if !was {
			if err := c.transport.Start(); err != nil {
				if !errors.Is(err, ErrBackoff) {
					slog.Warn("Audio: start failed, staying silent", "error", err)
				}
				c.gate.Reset()
				return false
			}
		}
	case was:
		c.synth.SetParams(tone.Params{})
		if err := c.transport.Stop(); err != nil {
			slog.Warn("Audio: stop failed", "error", err)
		}
	}
	return now
}

// Silence forces the silent state.
func (c *Controller) Silence() {
	was := c.gate.Playing()
	c.gate.Reset()
	c.synth.SetParams(tone.Params{})
	if was {
		if err := c.transport.Stop(); err != nil {
			slog.Warn("Audio: stop failed", "error", err)
		}
	}
}

// Playing reports the gate state.
func (c *Controller) Playing() bool { return c.gate.Playing() }

// Params returns the parameters currently published to the synthesizer.
func (c *Controller) Params() tone.Params { return c.synth.Params() }

// Profile returns the active tone profile.
func (c *Controller) Profile() *tone.Profile { return c.profile }
