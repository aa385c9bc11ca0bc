package synth

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrOutputStopped is returned by Write after Stop or Close.
	ErrOutputStopped = errors.New("audio output stopped")
	// ErrWriteTimeout is returned when the device stops consuming buffers.
	ErrWriteTimeout = errors.New("audio output write timed out")
)

// Output is an audio device accepting mono 16-bit PCM at the synthesizer rate.
// Write blocks according to the device's backpressure.
type Output interface {
	Start() error
	Write(buf []int16) error
	Stop() error
	Close() error
}

// DiscardOutput drops PCM after counting it. With Pace set it sleeps for the
// duration of each buffer, like a real device would block.
type DiscardOutput struct {
	SampleRate int
	Pace       bool
	// FailAfter makes the n-th and subsequent writes fail with ErrWriteTimeout. Zero disables.
	FailAfter int

	mu      sync.Mutex
	started bool
	writes  int
	samples atomic.Uint64
	starts  atomic.Int32
}

func (d *DiscardOutput) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = true
	d.starts.Add(1)
	return nil
}

func (d *DiscardOutput) Write(buf []int16) error {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return ErrOutputStopped
	}
	d.writes++
	fail := d.FailAfter > 0 && d.writes >= d.FailAfter
	d.mu.Unlock()

	if fail {
		return ErrWriteTimeout
	}
	d.samples.Add(uint64(len(buf)))
	if d.Pace && d.SampleRate > 0 {
		time.Sleep(time.Duration(len(buf)) * time.Second / time.Duration(d.SampleRate))
	}
	return nil
}

func (d *DiscardOutput) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = false
	return nil
}

func (d *DiscardOutput) Close() error { return d.Stop() }

// Samples returns the number of samples accepted.
func (d *DiscardOutput) Samples() uint64 { return d.samples.Load() }

// Starts returns how many times Start was called.
func (d *DiscardOutput) Starts() int { return int(d.starts.Load()) }

// Started reports whether the output is between Start and Stop.
func (d *DiscardOutput) Started() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started
}
