// Package mockbaro is a simulated barometer flying a scripted profile.
package mockbaro

import (
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"variogo/pkg/altitude"
	"variogo/pkg/sensor"
)

// Segment holds a constant vertical speed for a duration.
type Segment struct {
	Name     string
	Duration time.Duration
	Rate     float64 // m/s
}

// DefaultScenario is a short thermal flight: ground handling, a climb, a glide and a sink.
var DefaultScenario = []Segment{
	{Name: "ground", Duration: 10 * time.Second, Rate: 0},
	{Name: "thermal", Duration: 60 * time.Second, Rate: 2.5},
	{Name: "glide", Duration: 45 * time.Second, Rate: -1.0},
	{Name: "sink", Duration: 20 * time.Second, Rate: -4.0},
	{Name: "landed", Duration: 15 * time.Second, Rate: 0},
}

// Config controls the simulated flight.
type Config struct {
	QNH           float64 // hPa
	StartAltitude float64 // m
	Noise         float64 // hPa, standard deviation
	Scenario      []Segment
	Loop          bool
	// MaxPeriod rejects registrations asking for slower sampling than this. Zero accepts all.
	MaxPeriod time.Duration
	Seed      int64
}

// Driver implements sensor.Driver.
type Driver struct {
	cfg Config

	mu       sync.Mutex
	rng      *rand.Rand
	stopCh   chan struct{}
	wg       sync.WaitGroup
	sink     sensor.Sink
	started  time.Time
	altitude float64
	segment  int
}

// New creates a simulated barometer.
func New(cfg Config) *Driver {
	if cfg.QNH <= 0 {
		cfg.QNH = altitude.SeaLevelPressure
	}
	if len(cfg.Scenario) == 0 {
		cfg.Scenario = DefaultScenario
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Driver{
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(seed)),
		altitude: cfg.StartAltitude,
	}
}

func (d *Driver) Name() string { return "mockbaro" }

// Register starts the sampling loop at period.
func (d *Driver) Register(period time.Duration, sink sensor.Sink) error {
	if period <= 0 {
		return errors.New("invalid sampling period")
	}
	if d.cfg.MaxPeriod > 0 && period > d.cfg.MaxPeriod {
		return errors.New("sampling period not supported")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopCh != nil {
		return errors.New("already registered")
	}
	d.sink = sink
	d.stopCh = make(chan struct{})
	d.started = time.Now()
	d.altitude = d.cfg.StartAltitude
	d.segment = 0

	d.wg.Add(1)
	go d.loop(period, d.stopCh)
	sink.OnAccuracy(sensor.AccuracyHigh)
	slog.Info("MockBaro: flying scenario", "segments", len(d.cfg.Scenario), "qnh", d.cfg.QNH, "period", period)
	return nil
}

// Unregister stops the loop.
func (d *Driver) Unregister() error {
	d.mu.Lock()
	stopCh := d.stopCh
	d.stopCh = nil
	d.mu.Unlock()

	if stopCh == nil {
		return nil
	}
	close(stopCh)
	d.wg.Wait()
	return nil
}

// Altitude returns the true simulated altitude.
func (d *Driver) Altitude() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.altitude
}

func (d *Driver) loop(period time.Duration, stopCh chan struct{}) {
	defer d.wg.Done()
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-stopCh:
			return
		case now := <-ticker.C:
			s, ok := d.step(now, now.Sub(last))
			last = now
			if ok {
				d.sink.OnSample(s)
			}
		}
	}
}

func (d *Driver) step(now time.Time, dt time.Duration) (sensor.PressureSample, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	seg, done := d.segmentAt(now.Sub(d.started))
	if done {
		return sensor.PressureSample{}, false
	}
	if seg != d.segment {
		slog.Debug("MockBaro: segment", "name", d.cfg.Scenario[seg].Name, "altitude", d.altitude)
		d.segment = seg
	}
	d.altitude += d.cfg.Scenario[seg].Rate * dt.Seconds()

	p := altitude.PressureAtAltitude(d.cfg.QNH, d.altitude)
	if d.cfg.Noise > 0 {
		p += d.rng.NormFloat64() * d.cfg.Noise
	}
	return sensor.PressureSample{Value: p, Timestamp: sensor.Monotonic()}, true
}

// segmentAt returns the scenario index active at elapsed time. With Loop the
// scenario restarts; otherwise the last segment holds and done is reported
// only for an empty scenario.
func (d *Driver) segmentAt(elapsed time.Duration) (int, bool) {
	var total time.Duration
	for _, s := range d.cfg.Scenario {
		total += s.Duration
	}
	if total <= 0 {
		return 0, len(d.cfg.Scenario) == 0
	}
	if d.cfg.Loop {
		elapsed %= total
	}
	for i, s := range d.cfg.Scenario {
		if elapsed < s.Duration {
			return i, false
		}
		elapsed -= s.Duration
	}
	return len(d.cfg.Scenario) - 1, false
}
