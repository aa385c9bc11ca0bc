// Package session wires the pressure pipeline for one flight: warm-up,
// smoothing, altitude, vertical speed and the tone controller.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"variogo/pkg/altitude"
	"variogo/pkg/model"
	"variogo/pkg/sensor"
	"variogo/pkg/smoother"
	"variogo/pkg/synth"
	"variogo/pkg/tone"
	"variogo/pkg/vario"
)

var (
	// ErrInvalidPressure is raised for non-positive or non-finite samples.
	ErrInvalidPressure = errors.New("invalid pressure sample")
	// ErrNoPressure is returned by calibration before the first smoothed sample.
	ErrNoPressure = errors.New("no pressure reading yet")
	// ErrInvalidAltitude is returned for non-finite calibration targets.
	ErrInvalidAltitude = errors.New("invalid altitude")
	// ErrInvalidDirection is returned by CalibrateStep for directions other than +1/-1.
	ErrInvalidDirection = errors.New("direction must be +1 or -1")
	// ErrInvalidQNH is returned for non-positive or non-finite reference pressures.
	ErrInvalidQNH = errors.New("invalid QNH")
)

// Preferences is the persistent settings store used by the session.
type Preferences interface {
	QNH(ctx context.Context) float64
	UseMetric(ctx context.Context) bool
	VolumeLevel(ctx context.Context) int
	SetQNH(ctx context.Context, qnh float64) error
	SetUseMetric(ctx context.Context, metric bool) error
	SetVolumeLevel(ctx context.Context, level int) error
}

// Options configures the pipeline.
type Options struct {
	Warmup    time.Duration
	Smoothing string
	Window    int
	MinDt     time.Duration
}

// Components are the collaborators owned by a session.
type Components struct {
	Sensors *sensor.Manager
	Profile *tone.Profile
	Synth   *synth.Synthesizer
	Player  *synth.Player
}

// Session is the context of one flight. It is created on start and discarded on stop.
type Session struct {
	id        string
	startedAt time.Time
	prefs     Preferences
	events    *EventLog

	sensors *sensor.Manager
	synth   *synth.Synthesizer
	player  *synth.Player

	mu         sync.RWMutex
	warmup     *smoother.Warmup
	smoother   smoother.Smoother
	estimator  *vario.Estimator
	controller *synth.Controller
	qnh        float64
	useMetric  bool
	volume     int
	last       Reading
	stats      Stats
	err        error
}

// New creates a session. Preferences are read once; later changes go through the setters.
func New(ctx context.Context, opts Options, c Components, prefs Preferences) (*Session, error) {
	sm, err := smoother.New(opts.Smoothing, opts.Window)
	if err != nil {
		return nil, err
	}
	if c.Sensors == nil || c.Profile == nil || c.Synth == nil || c.Player == nil {
		return nil, errors.New("session: missing component")
	}

	id := uuid.New().String()
	s := &Session{
		id:         id,
		startedAt:  time.Now(),
		prefs:      prefs,
		events:     NewEventLog(id),
		sensors:    c.Sensors,
		synth:      c.Synth,
		player:     c.Player,
		warmup:     smoother.NewWarmup(opts.Warmup),
		smoother:   sm,
		estimator:  vario.NewEstimator(opts.MinDt),
		controller: synth.NewController(c.Profile, c.Synth, c.Player),
		qnh:        prefs.QNH(ctx),
		useMetric:  prefs.UseMetric(ctx),
		volume:     prefs.VolumeLevel(ctx),
		last:       emptyReading(),
		stats:      newStats(),
	}
	s.synth.Volume().SetLevel(s.volume)

	c.Player.OnExit = func(err error) {
		s.events.Add(model.EventAudio, "Audio failure", err.Error())
	}
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Events returns the session event log.
func (s *Session) Events() *EventLog { return s.events }

// Run starts the sensor and consumes its events until ctx is cancelled. On
// exit playback is stopped, the output device released and the sensor unregistered.
func (s *Session) Run(ctx context.Context) error {
	s.events.Add(model.EventSessionStart, "Session started",
		fmt.Sprintf("QNH %.2f hPa, sensor %s", s.qnh, s.sensors.Status().Driver))
	defer s.shutdown()

	if err := s.sensors.Start(); err != nil {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		s.events.Add(model.EventSensor, "Sensor unavailable", err.Error())
		return err
	}

	s.mu.Lock()
	s.warmup.Reset()
	s.mu.Unlock()

	events := s.sensors.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			s.Process(ev)
		}
	}
}

func (s *Session) shutdown() {
	s.mu.Lock()
	s.controller.Silence()
	s.mu.Unlock()

	if err := s.player.Close(); err != nil {
		slog.Warn("Session: audio close failed", "error", err)
	}
	s.sensors.Stop()
	s.events.Add(model.EventSessionStop, "Session stopped", "Running for: "+FormatUptime(time.Since(s.startedAt)))
}

// Process runs one sensor event through the pipeline and returns the latest reading.
func (s *Session) Process(ev sensor.Event) Reading {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.Err != nil {
		s.fault(ev.Err)
		return s.last
	}
	if !ev.Sample.Valid() {
		s.fault(fmt.Errorf("%w: %v", ErrInvalidPressure, ev.Sample.Value))
		return s.last
	}

	if !s.warmup.Accept(ev.Sample) {
		return s.last
	}
	smoothed, ok := s.smoother.Add(ev.Sample)
	if !ok {
		return s.last
	}

	if s.err != nil {
		slog.Info("Session: sensor recovered", "previous_error", s.err)
		s.err = nil
	}

	alt := altitude.CalculateAltitude(smoothed.Value, s.qnh)
	vs := s.estimator.Update(alt, smoothed.Timestamp)
	playing := s.controller.Update(vs)

	s.last = Reading{
		Pressure:      smoothed.Value,
		Altitude:      alt,
		VerticalSpeed: vs,
		Timestamp:     smoothed.Timestamp,
		Playing:       playing,
		Tone:          s.controller.Params(),
	}
	s.stats.observe(alt, vs)
	return s.last
}

// fault resets the filters, silences the tone and raises the error state.
// The last known values are kept. Caller holds s.mu.
func (s *Session) fault(err error) {
	s.stats.Faults++
	s.estimator.Reset()
	s.smoother.Reset()
	s.controller.Silence()
	s.last.Playing = false
	s.last.Tone = tone.Params{}
	s.last.Err = err

	if s.err == nil || s.err.Error() != err.Error() {
		slog.Warn("Session: sensor fault", "error", err)
		s.events.Add(model.EventSensor, "Sensor fault", err.Error())
	}
	s.err = err
}

// Calibrate sets QNH so that the current pressure reads as altitudeM.
func (s *Session) Calibrate(ctx context.Context, altitudeM float64) (float64, error) {
	if math.IsNaN(altitudeM) || math.IsInf(altitudeM, 0) {
		return 0, ErrInvalidAltitude
	}

	s.mu.Lock()
	p := s.last.Pressure
	s.mu.Unlock()
	if math.IsNaN(p) {
		return 0, ErrNoPressure
	}

	qnh := altitude.CalculateQNHFromAltitude(p, altitudeM)
	if err := s.SetQNH(ctx, qnh); err != nil {
		return 0, err
	}
	s.events.Add(model.EventCalibration, "Altitude calibrated",
		fmt.Sprintf("%s, QNH %.2f hPa", altitude.FormatAltitude(altitudeM, s.UseMetric()), qnh))
	return qnh, nil
}

// CalibrateStep nudges the displayed altitude by one unit step (10 m or 25 ft).
func (s *Session) CalibrateStep(ctx context.Context, direction int) (float64, error) {
	if direction != 1 && direction != -1 {
		return 0, ErrInvalidDirection
	}
	s.mu.RLock()
	alt := s.last.Altitude
	metric := s.useMetric
	s.mu.RUnlock()
	if math.IsNaN(alt) {
		return 0, ErrNoPressure
	}
	return s.Calibrate(ctx, alt+float64(direction)*altitude.StepMeters(metric))
}

// SetQNH persists a new reference pressure. The vertical speed estimator is
// reset so the altitude jump does not register as climb or sink.
func (s *Session) SetQNH(ctx context.Context, qnh float64) error {
	if qnh <= 0 || math.IsNaN(qnh) || math.IsInf(qnh, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidQNH, qnh)
	}
	if err := s.prefs.SetQNH(ctx, qnh); err != nil {
		return fmt.Errorf("persist QNH: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.qnh
	s.qnh = qnh
	s.estimator.Reset()
	if !math.IsNaN(s.last.Pressure) {
		s.last.Altitude = altitude.CalculateAltitude(s.last.Pressure, qnh)
	}
	s.last.VerticalSpeed = math.NaN()
	slog.Info("Session: QNH updated", "old", old, "new", qnh)
	return nil
}

// SetVolumeLevel persists the level and applies it to the next audio buffer.
func (s *Session) SetVolumeLevel(ctx context.Context, level int) error {
	if err := s.prefs.SetVolumeLevel(ctx, level); err != nil {
		return err
	}
	s.synth.Volume().SetLevel(level)
	s.mu.Lock()
	s.volume = level
	s.mu.Unlock()
	return nil
}

// SetUseMetric persists the unit system.
func (s *Session) SetUseMetric(ctx context.Context, metric bool) error {
	if err := s.prefs.SetUseMetric(ctx, metric); err != nil {
		return err
	}
	s.mu.Lock()
	s.useMetric = metric
	s.mu.Unlock()
	return nil
}

// UseMetric reports the active unit system.
func (s *Session) UseMetric() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.useMetric
}

// QNH returns the active reference pressure.
func (s *Session) QNH() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.qnh
}

// RestartAudio restarts playback if the synthesis loop died while the tone was on.
func (s *Session) RestartAudio() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.player.Faulted() {
		return nil
	}
	return s.player.Restart()
}

// AudioFaulted reports a terminated synthesis loop while playback is requested.
func (s *Session) AudioFaulted() bool {
	return s.player.Faulted()
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	snap := Snapshot{
		ID:          s.id,
		StartedAt:   s.startedAt,
		Uptime:      time.Since(s.startedAt),
		Reading:     s.last,
		QNH:         s.qnh,
		UseMetric:   s.useMetric,
		VolumeLevel: s.volume,
		Stats:       s.stats,
		Err:         s.err,
	}
	s.mu.RUnlock()

	snap.Sensor = s.sensors.Status()
	if snap.Err == nil {
		snap.Err = snap.Sensor.Err
	}
	snap.Audio = AudioStatus{
		Active:  s.player.Active(),
		Running: s.player.Running(),
		Volume:  s.synth.Volume().Get(),
		Err:     s.player.Err(),
	}
	return snap
}

// FormatUptime renders a duration as hh:mm:ss.
func FormatUptime(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	sec := d / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
}
