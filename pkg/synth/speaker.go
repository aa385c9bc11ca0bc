package synth

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// SpeakerOutput plays PCM through the system audio device. Written buffers
// are queued on a bounded ring consumed by the speaker mixer; when the ring
// runs dry the mixer streams silence.
type SpeakerOutput struct {
	sampleRate   beep.SampleRate
	latency      time.Duration
	writeTimeout time.Duration

	mu          sync.Mutex
	initialized bool
	ring        chan []int16
	stopCh      chan struct{}
	playing     bool
	closed      bool

	cur []int16 // owned by the mixer goroutine
}

// NewSpeakerOutput creates a speaker output. queue is the number of buffers
// that may be in flight.
func NewSpeakerOutput(sampleRate int, latency time.Duration, queue int) *SpeakerOutput {
	if latency <= 0 {
		latency = 100 * time.Millisecond
	}
	if queue <= 0 {
		queue = 4
	}
	return &SpeakerOutput{
		sampleRate:   beep.SampleRate(sampleRate),
		latency:      latency,
		writeTimeout: 2 * time.Second,
		ring:         make(chan []int16, queue),
	}
}

// Start initializes the device once and begins streaming.
func (o *SpeakerOutput) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrOutputStopped
	}
	if o.playing {
		return nil
	}
	if !o.initialized {
		if err := speaker.Init(o.sampleRate, o.sampleRate.N(o.latency)); err != nil {
			slog.Error("Audio: failed to initialize speaker", "error", err)
			return fmt.Errorf("speaker init: %w", err)
		}
		o.initialized = true
		slog.Info("Audio: speaker initialized", "sample_rate", int(o.sampleRate), "latency", o.latency)
	}

	o.stopCh = make(chan struct{})
	o.playing = true
	speaker.Play(beep.StreamerFunc(o.stream))
	return nil
}

// Write queues a copy of buf, blocking while the ring is full.
func (o *SpeakerOutput) Write(buf []int16) error {
	o.mu.Lock()
	if !o.playing {
		o.mu.Unlock()
		return ErrOutputStopped
	}
	stopCh := o.stopCh
	o.mu.Unlock()

	pcm := make([]int16, len(buf))
	copy(pcm, buf)

	t := time.NewTimer(o.writeTimeout)
	defer t.Stop()
	select {
	case o.ring <- pcm:
		return nil
	case <-stopCh:
		return ErrOutputStopped
	case <-t.C:
		return ErrWriteTimeout
	}
}

// Stop halts the stream and discards queued audio.
func (o *SpeakerOutput) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.playing {
		return nil
	}
	o.playing = false
	close(o.stopCh)

	speaker.Clear()
	speaker.Lock()
	o.cur = nil
	speaker.Unlock()
	for {
		select {
		case <-o.ring:
		default:
			return nil
		}
	}
}

// Close stops streaming. The device itself stays initialized for the process.
func (o *SpeakerOutput) Close() error {
	err := o.Stop()
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	return err
}

// stream runs on the speaker goroutine with the speaker lock held.
func (o *SpeakerOutput) stream(samples [][2]float64) (int, bool) {
	for i := range samples {
		if len(o.cur) == 0 {
			select {
			case o.cur = <-o.ring:
			default:
			}
		}
		if len(o.cur) == 0 {
			samples[i] = [2]float64{}
			continue
		}
		v := float64(o.cur[0]) / (math.MaxInt16 + 1)
		samples[i] = [2]float64{v, v}
		o.cur = o.cur[1:]
	}
	return len(samples), true
}
