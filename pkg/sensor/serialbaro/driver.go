// Package serialbaro reads a barometer attached over a serial line.
package serialbaro

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.bug.st/serial"

	"variogo/pkg/sensor"
)

// maxBadLines is how many consecutive unparseable lines flag the sensor unreliable.
const maxBadLines = 10

// Opener opens the port. It is replaced in tests.
type Opener func(path string, mode *serial.Mode) (io.ReadCloser, error)

// OpenSerial opens a real port through go.bug.st/serial.
func OpenSerial(path string, mode *serial.Mode) (io.ReadCloser, error) {
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}
	return port, nil
}

// Driver implements sensor.Driver for a line-oriented serial barometer.
type Driver struct {
	path string
	opts PortOptions
	open Opener

	mu   sync.Mutex
	port io.ReadCloser
	wg   sync.WaitGroup
}

// New creates a driver for the device at path.
func New(path string, opts PortOptions, open Opener) *Driver {
	if open == nil {
		open = OpenSerial
	}
	return &Driver{path: path, opts: opts, open: open}
}

func (d *Driver) Name() string { return "serial:" + d.path }

// Register opens the port and starts reading. The device pushes samples at
// its own rate; period only bounds how often samples are forwarded.
func (d *Driver) Register(period time.Duration, sink sensor.Sink) error {
	mode, err := d.opts.Mode()
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port != nil {
		return errors.New("already registered")
	}

	port, err := d.open(d.path, mode)
	if err != nil {
		return fmt.Errorf("open %s: %w", d.path, err)
	}
	d.port = port

	d.wg.Add(1)
	go d.read(port, period, sink)
	slog.Info("SerialBaro: port open", "path", d.path, "baud", mode.BaudRate, "period", period)
	return nil
}

// Unregister closes the port and waits for the reader.
func (d *Driver) Unregister() error {
	d.mu.Lock()
	port := d.port
	d.port = nil
	d.mu.Unlock()

	if port == nil {
		return nil
	}
	err := port.Close()
	d.wg.Wait()
	return err
}

func (d *Driver) read(port io.Reader, period time.Duration, sink sensor.Sink) {
	defer d.wg.Done()

	sc := bufio.NewScanner(port)
	var last int64
	bad := 0
	for sc.Scan() {
		hpa, err := ParseLine(sc.Text())
		if err != nil {
			bad++
			if bad == maxBadLines {
				slog.Warn("SerialBaro: no valid pressure in recent lines", "path", d.path, "error", err)
				sink.OnAccuracy(sensor.AccuracyUnreliable)
			}
			continue
		}
		if bad >= maxBadLines {
			sink.OnAccuracy(sensor.AccuracyHigh)
		}
		bad = 0

		ts := sensor.Monotonic()
		if ts-last < int64(period)*9/10 {
			continue
		}
		last = ts
		sink.OnSample(sensor.PressureSample{Value: hpa, Timestamp: ts})
	}

	d.mu.Lock()
	closed := d.port == nil
	d.mu.Unlock()
	if !closed {
		slog.Error("SerialBaro: read stopped", "path", d.path, "error", sc.Err())
		sink.OnAccuracy(sensor.AccuracyUnreliable)
	}
}
