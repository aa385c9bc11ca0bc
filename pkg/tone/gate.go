package tone

import "log/slog"

// Gate is the on/off hysteresis state machine. It is not safe for concurrent use.
type Gate struct {
	climbOn, climbOff float64
	sinkOn, sinkOff   float64
	playing           bool
}

// NewGate creates a silent gate for the profile thresholds.
func NewGate(p *Profile) *Gate {
	return &Gate{
		climbOn:  p.ClimbOn,
		climbOff: p.ClimbOff,
		sinkOn:   p.SinkOn,
		sinkOff:  p.SinkOff,
	}
}

// Next advances the state for a new vertical speed and its resolved tone and
// returns whether the tone should be playing.
func (g *Gate) Next(vs float64, params Params) bool {
	if !params.Audible() {
		g.playing = false
		return false
	}

	if g.playing {
		if vs <= g.climbOff && vs >= g.sinkOff {
			slog.Debug("Tone: quiet zone, stopping", "vs", vs)
			g.playing = false
		}
		return g.playing
	}

	if vs > g.climbOn || vs < g.sinkOn {
		slog.Debug("Tone: threshold crossed, starting", "vs", vs)
		g.playing = true
	}
	return g.playing
}

// Playing reports the current state.
func (g *Gate) Playing() bool { return g.playing }

// Reset forces the gate silent.
func (g *Gate) Reset() { g.playing = false }
