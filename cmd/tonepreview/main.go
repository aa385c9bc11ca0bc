// Command tonepreview renders a vertical speed sweep through a tone profile
// into a WAV file, for auditioning profiles without a barometer.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"variogo/pkg/synth"
	"variogo/pkg/tone"
)

type sweep struct {
	From, To, Step float64       // m/s
	Hold           time.Duration // per step
}

func main() {
	profilePath := flag.String("profile", "", "Tone profile (default: embedded profile)")
	out := flag.String("out", "tonepreview.wav", "Output WAV file")
	from := flag.Float64("from", -5, "Start vertical speed (m/s)")
	to := flag.Float64("to", 5, "End vertical speed (m/s)")
	step := flag.Float64("step", 0.5, "Vertical speed increment (m/s)")
	hold := flag.Duration("hold", 1500*time.Millisecond, "Time spent on each step")
	rate := flag.Int("rate", 44100, "Sample rate")
	level := flag.Int("volume", 3, "Volume level 0-3")
	flag.Parse()

	p, err := loadProfile(*profilePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load profile: %v\n", err)
		os.Exit(1)
	}

	wav := synth.NewWAVOutput(*out, *rate)
	sw := sweep{From: *from, To: *to, Step: *step, Hold: *hold}
	if err := render(p, sw, *rate, synth.VolumeForLevel(*level), wav); err != nil {
		fmt.Fprintf(os.Stderr, "Render failed: %v\n", err)
		os.Exit(1)
	}
	if err := wav.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s (%d samples)\n", *out, wav.Samples())
}

func loadProfile(path string) (*tone.Profile, error) {
	if path == "" {
		p, _, err := tone.ParseString(tone.DefaultProfileText)
		return p, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	p, diags, err := tone.Parse(f)
	for _, d := range diags {
		slog.Warn("Profile: skipped line", "detail", d.String())
	}
	return p, err
}

// render plays each sweep step through the gate, as the live pipeline
// would, and writes the synthesized PCM to out.
func render(p *tone.Profile, sw sweep, sampleRate int, volume float64, out synth.Output) error {
	if sw.Step == 0 {
		return fmt.Errorf("step must not be zero")
	}
	if (sw.To-sw.From)/sw.Step < 0 {
		sw.Step = -sw.Step
	}

	s := synth.New(sampleRate, 1024, synth.NewVolumeCell(volume))
	gate := tone.NewGate(p)
	if err := out.Start(); err != nil {
		return err
	}
	defer out.Stop()

	buf := make([]int16, s.BufferSize())
	perStep := int(sw.Hold.Seconds() * float64(sampleRate))

	steps := int((sw.To-sw.From)/sw.Step + 1e-9)
	for i := 0; i <= steps; i++ {
		vs := sw.From + float64(i)*sw.Step
		params, ok := p.SoundParameters(vs)
		if !ok || !gate.Next(vs, params) {
			params = tone.Params{}
		}
		s.SetParams(params)
		slog.Debug("Preview: step", "vs", vs, "hz", params.FrequencyHz, "cycle_ms", params.CycleMillis, "duty", params.DutyPercent)

		for n := 0; n < perStep; n += len(buf) {
			chunk := buf[:min(len(buf), perStep-n)]
			s.Fill(chunk)
			if err := out.Write(chunk); err != nil {
				return err
			}
		}
	}
	return nil
}
