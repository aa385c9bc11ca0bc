package synth

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"variogo/pkg/backoff"
)

// ErrBackoff is returned by Start while a restart is being held back.
var ErrBackoff = errors.New("audio restart backing off")

const backoffKey = "audio"

// Player owns the output device and the synthesis goroutine. Start and Stop
// are edge-triggered and idempotent.
type Player struct {
	synth   *Synthesizer
	out     Output
	backoff *backoff.Backoff
	// OnExit is called from the loop goroutine when it terminates with an error.
	OnExit func(error)

	mu      sync.Mutex
	active  bool
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

// NewPlayer creates a player. A nil backoff disables restart gating.
func NewPlayer(s *Synthesizer, out Output, b *backoff.Backoff) *Player {
	return &Player{synth: s, out: out, backoff: b}
}

// Start opens the device and launches the loop.
func (p *Player) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active {
		return nil
	}
	if p.backoff != nil && !p.backoff.Ready(backoffKey) {
		return ErrBackoff
	}

	if err := p.out.Start(); err != nil {
		p.err = err
		if p.backoff != nil {
			delay := p.backoff.RecordFailure(backoffKey)
			slog.Error("Audio: output start failed", "error", err, "retry_in", delay)
		} else {
			slog.Error("Audio: output start failed", "error", err)
		}
		return err
	}

	p.synth.Reset()
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	p.active = true
	p.running = true
	p.err = nil

	go p.loop(ctx, p.done)
	slog.Debug("Audio: playback started")
	return nil
}

func (p *Player) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	err := p.synth.Run(ctx, p.out)

	p.mu.Lock()
	p.running = false
	p.err = err
	onExit := p.OnExit
	if err != nil && p.backoff != nil {
		delay := p.backoff.RecordFailure(backoffKey)
		slog.Error("Audio: synthesis loop terminated", "error", err, "retry_in", delay)
	} else if err != nil {
		slog.Error("Audio: synthesis loop terminated", "error", err)
	} else if p.backoff != nil {
		p.backoff.RecordSuccess(backoffKey)
	}
	p.mu.Unlock()

	if err != nil && onExit != nil {
		onExit(err)
	}
}

// Stop cancels the loop, waits for it to exit and stops the device.
func (p *Player) Stop() error {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return nil
	}
	p.active = false
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	cancel()
	// Unblocks a Write waiting on device backpressure.
	err := p.out.Stop()
	<-done
	if err != nil {
		slog.Warn("Audio: output stop failed", "error", err)
	}
	slog.Debug("Audio: playback stopped")
	return err
}

// Restart stops and starts playback if the loop died while active.
func (p *Player) Restart() error {
	p.mu.Lock()
	dead := p.active && !p.running
	p.mu.Unlock()
	if !dead {
		return nil
	}
	if p.backoff != nil && !p.backoff.Ready(backoffKey) {
		return ErrBackoff
	}
	_ = p.Stop()
	slog.Info("Audio: restarting playback")
	return p.Start()
}

// Close stops playback and releases the device.
func (p *Player) Close() error {
	return errors.Join(p.Stop(), p.out.Close())
}

// Active reports whether playback was requested and not stopped.
func (p *Player) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Running reports whether the loop goroutine is alive.
func (p *Player) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Faulted reports whether playback is active but the loop has terminated.
func (p *Player) Faulted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active && !p.running
}

// Err returns the error that last terminated the loop or failed Start.
func (p *Player) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}
