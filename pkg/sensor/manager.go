package sensor

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrNoSensor is returned when no barometer driver is configured.
	ErrNoSensor = errors.New("no pressure sensor available")
	// ErrRegistrationFailed is returned when the driver refused every sampling period.
	ErrRegistrationFailed = errors.New("pressure sensor registration failed")
)

// AccuracyError reports that the driver flagged its readings as unreliable.
type AccuracyError struct {
	Accuracy Accuracy
}

func (e *AccuracyError) Error() string {
	return fmt.Sprintf("pressure sensor accuracy %s", e.Accuracy)
}

// DefaultPeriods are tried in order until the driver accepts one.
var DefaultPeriods = []time.Duration{
	200 * time.Millisecond,
	100 * time.Millisecond,
	66 * time.Millisecond,
}

// Sink receives callbacks from a driver. Callbacks may arrive on any goroutine.
type Sink interface {
	OnSample(s PressureSample)
	OnAccuracy(a Accuracy)
}

// Driver is a barometer backend.
type Driver interface {
	Name() string
	// Register starts delivery to sink at the requested sampling period.
	Register(period time.Duration, sink Sink) error
	// Unregister stops delivery. It must be safe to call when not registered.
	Unregister() error
}

// Event is either a pressure sample or a sensor error.
type Event struct {
	Sample PressureSample
	Err    error
}

// Status is a snapshot of the manager state.
type Status struct {
	Driver     string
	Registered bool
	Period     time.Duration
	Err        error
	Dropped    uint64
}

// Manager owns the driver registration and forwards callbacks onto a bounded channel.
type Manager struct {
	mu         sync.RWMutex
	driver     Driver
	periods    []time.Duration
	events     chan Event
	registered bool
	period     time.Duration
	err        error
	dropped    atomic.Uint64
}

// NewManager creates a manager for the driver. A nil driver yields ErrNoSensor on Start.
func NewManager(d Driver, periods []time.Duration, queueSize int) *Manager {
	if len(periods) == 0 {
		periods = DefaultPeriods
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Manager{
		driver:  d,
		periods: periods,
		events:  make(chan Event, queueSize),
	}
}

// Events returns the channel consumed by the pipeline.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// Start registers the driver, retrying at progressively more permissive periods.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		slog.Debug("Sensor: already registered")
		return nil
	}

	if m.driver == nil {
		m.err = ErrNoSensor
		slog.Error("Sensor: no pressure sensor available")
		return ErrNoSensor
	}

	for _, p := range m.periods {
		if err := m.driver.Register(p, m); err != nil {
			slog.Warn("Sensor: registration rejected", "driver", m.driver.Name(), "period", p, "error", err)
			continue
		}
		m.registered = true
		m.period = p
		m.err = nil
		slog.Info("Sensor: registered", "driver", m.driver.Name(), "period", p)
		return nil
	}

	m.err = ErrRegistrationFailed
	slog.Error("Sensor: failed to register with any period", "driver", m.driver.Name())
	return ErrRegistrationFailed
}

// Stop unregisters the driver.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.registered {
		return
	}
	if err := m.driver.Unregister(); err != nil {
		slog.Warn("Sensor: unregister failed", "driver", m.driver.Name(), "error", err)
	}
	m.registered = false
	m.err = nil
	slog.Debug("Sensor: unregistered", "driver", m.driver.Name())
}

// Status returns the current registration and error state.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := Status{
		Registered: m.registered,
		Period:     m.period,
		Err:        m.err,
		Dropped:    m.dropped.Load(),
	}
	if m.driver != nil {
		st.Driver = m.driver.Name()
	}
	return st
}

// OnSample implements Sink.
func (m *Manager) OnSample(s PressureSample) {
	m.push(Event{Sample: s})
}

// OnAccuracy implements Sink.
func (m *Manager) OnAccuracy(a Accuracy) {
	m.mu.Lock()
	if a == AccuracyUnreliable {
		err := &AccuracyError{Accuracy: a}
		m.err = err
		m.mu.Unlock()
		slog.Warn("Sensor: accuracy unreliable")
		m.push(Event{Err: err})
		return
	}
	var accErr *AccuracyError
	if errors.As(m.err, &accErr) {
		m.err = nil
	}
	m.mu.Unlock()
	slog.Debug("Sensor: accuracy changed", "accuracy", a)
}

func (m *Manager) push(e Event) {
	select {
	case m.events <- e:
	default:
		if n := m.dropped.Add(1); n == 1 || n%100 == 0 {
			slog.Warn("Sensor: event queue full, dropping", "dropped", n)
		}
	}
}
