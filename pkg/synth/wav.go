package synth

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
)

// WAVOutput collects PCM in memory and writes a mono 16-bit WAV file on Close.
type WAVOutput struct {
	Path       string
	SampleRate int

	mu      sync.Mutex
	pcm     []int16
	started bool
	closed  bool
}

// NewWAVOutput creates a WAV sink at path.
func NewWAVOutput(path string, sampleRate int) *WAVOutput {
	return &WAVOutput{Path: path, SampleRate: sampleRate}
}

func (w *WAVOutput) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrOutputStopped
	}
	w.started = true
	return nil
}

func (w *WAVOutput) Write(buf []int16) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return ErrOutputStopped
	}
	w.pcm = append(w.pcm, buf...)
	return nil
}

func (w *WAVOutput) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.started = false
	return nil
}

// Samples returns the number of samples collected.
func (w *WAVOutput) Samples() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pcm)
}

// Close encodes the collected PCM to Path.
func (w *WAVOutput) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	w.started = false

	if err := os.MkdirAll(filepath.Dir(w.Path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(w.Path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	defer f.Close()

	format := beep.Format{
		SampleRate:  beep.SampleRate(w.SampleRate),
		NumChannels: 1,
		Precision:   2,
	}
	pcm := w.pcm
	src := beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if len(pcm) == 0 {
			return 0, false
		}
		n := min(len(samples), len(pcm))
		for i := range n {
			v := float64(pcm[i]) / (math.MaxInt16 + 1)
			samples[i] = [2]float64{v, v}
		}
		pcm = pcm[n:]
		return n, true
	})

	if err := wav.Encode(f, src, format); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	slog.Info("Audio: WAV written", "path", w.Path, "samples", len(w.pcm))
	return nil
}
